// Package session implements the edit session for the currently selected node.
//
// A Flashcard holds a buffered copy of one node's data. Edits go to the buffer
// and are recorded as operations; Commit replays those operations against the
// workspace's current graph. Fields the session never touched keep whatever
// value the graph holds at commit time, including values that arrived with a
// remote snapshot after the buffer was opened.
package session

import (
	"context"
	"sync"

	"concept-tree/application/ports"
	"concept-tree/application/services"
	"concept-tree/domain/config"
	"concept-tree/domain/core/aggregates"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type opKind int

const (
	opSetLabel opKind = iota
	opAddDescription
	opEditDescription
	opRemoveDescription
	opAddLink
	opRemoveLink
)

type op struct {
	kind   opKind
	text   string
	desc   valueobjects.DescriptionID
	target valueobjects.NodeID
}

// CommitResult summarises what a commit did
type CommitResult struct {
	NodeID  valueobjects.NodeID
	Applied int
	Skipped int
}

// Flashcard is the edit session controller for one node at a time
type Flashcard struct {
	workspace *services.Workspace
	articles  *services.ArticleService
	readiness ports.Readiness
	ids       valueobjects.IDGenerator
	config    *config.DomainConfig
	logger    *zap.Logger

	mu         sync.Mutex
	open       bool
	nodeID     valueobjects.NodeID
	buffer     entities.NodeData
	ops        []op
	generation uint64

	resolving singleflight.Group
}

// NewFlashcard creates an edit session controller
func NewFlashcard(
	workspace *services.Workspace,
	articles *services.ArticleService,
	readiness ports.Readiness,
	ids valueobjects.IDGenerator,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *Flashcard {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flashcard{
		workspace: workspace,
		articles:  articles,
		readiness: readiness,
		ids:       ids,
		config:    cfg,
		logger:    logger,
	}
}

// Open starts editing a node. A buffer already open for another node is
// committed first; if that commit fails its error is returned, no buffer is
// left open and nodeID is not opened. The caller may call Open again.
func (f *Flashcard) Open(nodeID valueobjects.NodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open && f.nodeID != nodeID {
		if _, err := f.commitLocked(); err != nil {
			f.reset()
			return err
		}
	}
	if f.open && f.nodeID == nodeID {
		return nil
	}

	node, ok := f.workspace.Node(nodeID)
	if !ok {
		return appErrors.NewStaleReferenceError("node", nodeID.String())
	}

	f.open = true
	f.nodeID = nodeID
	f.buffer = node.Data.Clone()
	f.buffer.Normalize()
	f.ops = nil
	f.generation = f.workspace.Generation()
	return nil
}

// IsOpen reports whether a buffer is open
func (f *Flashcard) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// NodeID returns the node being edited
func (f *Flashcard) NodeID() valueobjects.NodeID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nodeID
}

// Buffer returns a copy of the buffered node data
func (f *Flashcard) Buffer() entities.NodeData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffer.Clone()
}

// Dirty reports whether the buffer holds uncommitted edits
func (f *Flashcard) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops) > 0
}

// Stale reports whether a remote snapshot replaced the graph since the buffer was opened
func (f *Flashcard) Stale() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open && f.generation != f.workspace.Generation()
}

// SetLabel edits the buffered label
func (f *Flashcard) SetLabel(label string) bool {
	return f.edit(func() bool {
		f.buffer.Label = label
		f.ops = append(f.ops, op{kind: opSetLabel, text: label})
		return true
	})
}

// AddDescription appends an empty description to the buffer
func (f *Flashcard) AddDescription() (valueobjects.DescriptionID, bool) {
	var id valueobjects.DescriptionID
	ok := f.edit(func() bool {
		id = f.ids.NextDescriptionID()
		f.buffer.Descriptions = append(f.buffer.Descriptions, entities.Description{ID: id})
		f.ops = append(f.ops, op{kind: opAddDescription, desc: id})
		return true
	})
	return id, ok
}

// EditDescription replaces the text of a buffered description
func (f *Flashcard) EditDescription(id valueobjects.DescriptionID, text string) bool {
	return f.edit(func() bool {
		i := f.buffer.FindDescription(id)
		if i < 0 {
			return false
		}
		f.buffer.Descriptions[i].Text = text
		f.ops = append(f.ops, op{kind: opEditDescription, desc: id, text: text})
		return true
	})
}

// RemoveDescription removes a buffered description. Its article is kept.
func (f *Flashcard) RemoveDescription(id valueobjects.DescriptionID) bool {
	return f.edit(func() bool {
		i := f.buffer.FindDescription(id)
		if i < 0 {
			return false
		}
		f.buffer.Descriptions = append(f.buffer.Descriptions[:i:i], f.buffer.Descriptions[i+1:]...)
		f.ops = append(f.ops, op{kind: opRemoveDescription, desc: id})
		return true
	})
}

// AddLink adds a linked node to the buffer. Self links and repeats are ignored.
func (f *Flashcard) AddLink(target valueobjects.NodeID) bool {
	return f.edit(func() bool {
		if target == f.nodeID || f.buffer.IsLinkedTo(target) {
			return false
		}
		f.buffer.LinkedNodes = append(f.buffer.LinkedNodes, target)
		f.ops = append(f.ops, op{kind: opAddLink, target: target})
		return true
	})
}

// RemoveLink drops a linked node from the buffer
func (f *Flashcard) RemoveLink(target valueobjects.NodeID) bool {
	return f.edit(func() bool {
		for i, id := range f.buffer.LinkedNodes {
			if id == target {
				f.buffer.LinkedNodes = append(f.buffer.LinkedNodes[:i:i], f.buffer.LinkedNodes[i+1:]...)
				f.ops = append(f.ops, op{kind: opRemoveLink, target: target})
				return true
			}
		}
		return false
	})
}

func (f *Flashcard) edit(fn func() bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return false
	}
	return fn()
}

// AvailableLinkTargets lists the workspace nodes the buffer could link to
func (f *Flashcard) AvailableLinkTargets() []entities.Node {
	f.mu.Lock()
	nodeID, buffer, open := f.nodeID, f.buffer.Clone(), f.open
	f.mu.Unlock()
	if !open {
		return nil
	}

	var targets []entities.Node
	for _, n := range f.workspace.Nodes() {
		if n.ID == nodeID || buffer.IsLinkedTo(n.ID) {
			continue
		}
		targets = append(targets, n)
	}
	return targets
}

// LinkedNodes resolves the buffer's linked set against the workspace, skipping dangling ids
func (f *Flashcard) LinkedNodes() []entities.Node {
	f.mu.Lock()
	buffer, open := f.buffer.Clone(), f.open
	f.mu.Unlock()
	if !open {
		return nil
	}

	var linked []entities.Node
	for _, id := range buffer.LinkedNodes {
		if n, ok := f.workspace.Node(id); ok {
			linked = append(linked, n)
		}
	}
	return linked
}

// Commit merges the buffered edits into the workspace graph.
// If the node was removed meanwhile the edits are dropped and a STALE_REFERENCE error is returned.
func (f *Flashcard) Commit() (CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return CommitResult{}, nil
	}
	return f.commitLocked()
}

// Close commits pending edits and closes the buffer
func (f *Flashcard) Close() (CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return CommitResult{}, nil
	}
	result, err := f.commitLocked()
	f.reset()
	return result, err
}

// Discard closes the buffer without applying its edits
func (f *Flashcard) Discard() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

func (f *Flashcard) reset() {
	f.open = false
	f.nodeID = ""
	f.buffer = entities.NodeData{}
	f.ops = nil
}

func (f *Flashcard) commitLocked() (CommitResult, error) {
	result := CommitResult{NodeID: f.nodeID}
	if len(f.ops) == 0 {
		f.reload()
		return result, nil
	}

	stale := false
	f.workspace.Mutate(func(g *aggregates.Graph) {
		if !g.HasNode(f.nodeID) {
			stale = true
			return
		}
		for _, o := range f.ops {
			if f.apply(g, o) {
				result.Applied++
			} else {
				result.Skipped++
			}
		}
	})

	if stale {
		f.logger.Warn("Dropped edits for a node removed by a remote snapshot",
			zap.String("nodeID", f.nodeID.String()),
			zap.Int("edits", len(f.ops)),
		)
		id := f.nodeID
		f.reset()
		return result, appErrors.NewStaleReferenceError("node", id.String())
	}

	if result.Skipped > 0 {
		f.logger.Info("Some buffered edits no longer applied",
			zap.String("nodeID", f.nodeID.String()),
			zap.Int("applied", result.Applied),
			zap.Int("skipped", result.Skipped),
		)
	}
	f.ops = nil
	f.reload()
	return result, nil
}

// apply replays one buffered operation against the live graph
func (f *Flashcard) apply(g *aggregates.Graph, o op) bool {
	switch o.kind {
	case opSetLabel:
		label := o.text
		return g.UpdateNodeData(f.nodeID, entities.NodeDataPatch{Label: &label})
	case opAddDescription:
		desc := entities.Description{ID: o.desc}
		if i := f.buffer.FindDescription(o.desc); i >= 0 {
			desc = f.buffer.Descriptions[i]
		}
		return g.AppendDescription(f.nodeID, desc)
	case opEditDescription:
		return g.EditDescriptionText(f.nodeID, o.desc, o.text)
	case opRemoveDescription:
		return g.RemoveDescription(f.nodeID, o.desc)
	case opAddLink:
		if !g.HasNode(o.target) {
			return false
		}
		return g.AddLink(f.nodeID, o.target)
	case opRemoveLink:
		return g.RemoveLink(f.nodeID, o.target)
	default:
		return false
	}
}

// reload refreshes the buffer from the graph after a commit
func (f *Flashcard) reload() {
	node, ok := f.workspace.Node(f.nodeID)
	if !ok {
		return
	}
	f.buffer = node.Data.Clone()
	f.buffer.Normalize()
	f.generation = f.workspace.Generation()
}

// ResolveArticleLink returns the article bound to a buffered description.
// An unlinked description gets a newly created article, bound to both the
// buffer and the workspace graph before returning. Concurrent calls for the
// same description share one creation.
func (f *Flashcard) ResolveArticleLink(ctx context.Context, descID valueobjects.DescriptionID) (valueobjects.ArticleID, error) {
	if f.readiness != nil && !f.readiness.Ready() {
		return "", appErrors.NewNotReadyError("resolve article link")
	}

	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return "", appErrors.NewValidationError("no node is being edited")
	}
	nodeID := f.nodeID
	i := f.buffer.FindDescription(descID)
	if i < 0 {
		f.mu.Unlock()
		return "", appErrors.NewStaleReferenceError("description", descID.String())
	}
	desc := f.buffer.Descriptions[i]
	f.mu.Unlock()

	if desc.HasLink() {
		return desc.Link, nil
	}

	key := nodeID.String() + "/" + descID.String()
	v, err, _ := f.resolving.Do(key, func() (interface{}, error) {
		// a previous flight may have bound the link already
		f.mu.Lock()
		if j := f.buffer.FindDescription(descID); j >= 0 && f.buffer.Descriptions[j].HasLink() {
			link := f.buffer.Descriptions[j].Link
			f.mu.Unlock()
			return link, nil
		}
		f.mu.Unlock()

		// or a remote snapshot may have bound it after the buffer was opened
		if live, ok := f.workspace.Description(nodeID, descID); ok && live.HasLink() {
			f.adoptLink(nodeID, descID, live.Link)
			return live.Link, nil
		}

		title := f.config.DefaultArticleTitle
		if f.config.UseDescriptionTitle && desc.Text != "" {
			title = desc.Text
		}

		articleID, err := f.articles.Create(ctx, title, f.config.DefaultArticleBody)
		if err != nil {
			return valueobjects.ArticleID(""), err
		}

		f.bind(nodeID, descID, articleID)
		return articleID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(valueobjects.ArticleID), nil
}

// adoptLink copies a link into the buffer without touching the workspace
func (f *Flashcard) adoptLink(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, articleID valueobjects.ArticleID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open && f.nodeID == nodeID {
		if j := f.buffer.FindDescription(descID); j >= 0 {
			f.buffer.Descriptions[j].Link = articleID
		}
	}
}

func (f *Flashcard) bind(nodeID valueobjects.NodeID, descID valueobjects.DescriptionID, articleID valueobjects.ArticleID) {
	f.adoptLink(nodeID, descID, articleID)

	if !f.workspace.SetDescriptionLink(nodeID, descID, articleID) {
		// the description exists only in the buffer; its add operation carries the link on commit
		f.logger.Debug("Article bound to uncommitted description",
			zap.String("nodeID", nodeID.String()),
			zap.String("articleID", articleID.String()),
		)
	}
}

// OpenArticle reads the article bound to a description, or an empty article
// when the reference is dangling
func (f *Flashcard) OpenArticle(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	return f.articles.Open(ctx, id)
}

// SaveArticle writes title and content of an article. The graph is not touched.
func (f *Flashcard) SaveArticle(ctx context.Context, id valueobjects.ArticleID, title, content string) error {
	return f.articles.Save(ctx, id, entities.ArticlePatch{Title: &title, Content: &content})
}
