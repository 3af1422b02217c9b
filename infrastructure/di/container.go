package di

import (
	"context"
	"sync/atomic"
	"time"

	"concept-tree/application/ports"
	"concept-tree/application/services"
	"concept-tree/application/session"
	appsync "concept-tree/application/sync"
	domainconfig "concept-tree/domain/config"
	"concept-tree/infrastructure/config"
	"concept-tree/infrastructure/messaging"
	"concept-tree/interfaces/http/rest"
	"concept-tree/interfaces/websocket"
	"concept-tree/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	DomainConfig *domainconfig.DomainConfig
	Logger       *zap.Logger
	Watcher      *config.ConfigWatcher
	PollInterval *PollInterval
	Metrics      *observability.Collector
	Tracing      *observability.TracerProvider
	Documents    ports.GraphDocumentStore
	Articles     ports.ArticleStore
	Dispatcher   *messaging.Dispatcher
	Publisher    ports.EventPublisher

	// Editor side. The server binaries do not start these; processes that
	// embed the module drive them against a remote or dynamodb backend.
	Workspace      *services.Workspace
	Engine         *appsync.Engine
	ArticleService *services.ArticleService
	Flashcard      *session.Flashcard
	Hub            *websocket.Hub
	Router         *rest.Router
}

// Shutdown releases the watcher and flushes traces and logs
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	var err error
	if c.Tracing != nil {
		err = c.Tracing.Shutdown(ctx)
	}
	c.Logger.Sync()
	return err
}

// PollInterval is the snapshot poll interval shared with polling stores.
// It is updated when the dynamic configuration changes.
type PollInterval struct {
	v atomic.Int64
}

// NewPollInterval creates a holder with an initial value
func NewPollInterval(d time.Duration) *PollInterval {
	p := &PollInterval{}
	p.Set(d)
	return p
}

// Get returns the current interval
func (p *PollInterval) Get() time.Duration {
	return time.Duration(p.v.Load())
}

// Set replaces the interval; non-positive values are ignored
func (p *PollInterval) Set(d time.Duration) {
	if d > 0 {
		p.v.Store(int64(d))
	}
}
