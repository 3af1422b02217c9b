package handlers

import (
	"net/http"
	"strings"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	appErrors "concept-tree/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// streamSuffix selects the websocket feed of a graph document
const streamSuffix = "/stream"

// Streamer upgrades a request into a snapshot feed for a document key
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, key string)
}

// GraphResponse is the body of GET /graphs/{key}
type GraphResponse struct {
	Key      string                 `json:"key"`
	Version  int64                  `json:"version"`
	Document entities.GraphDocument `json:"document"`
}

// PutGraphResponse is the body of PUT /graphs/{key}
type PutGraphResponse struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

// GraphHandler serves whole graph documents. Document keys are paths, so they
// are taken from the route wildcard.
type GraphHandler struct {
	store    ports.GraphDocumentStore
	streamer Streamer
	validate *validator.Validate
	errors   *appErrors.ErrorHandler
	logger   *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(store ports.GraphDocumentStore, streamer Streamer, validate *validator.Validate, errs *appErrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		store:    store,
		streamer: streamer,
		validate: validate,
		errors:   errs,
		logger:   logger,
	}
}

func graphKey(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

// Get handles GET /graphs/{key} and GET /graphs/{key}/stream
func (h *GraphHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := graphKey(r)
	if base, ok := strings.CutSuffix(key, streamSuffix); ok {
		h.stream(w, r, base)
		return
	}
	if key == "" {
		h.errors.Handle(w, r, appErrors.NewValidationError("graph key is required"))
		return
	}

	doc, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, GraphResponse{Key: key, Version: doc.Version, Document: doc.Document})
}

// Put handles PUT /graphs/{key}: a whole-document overwrite
func (h *GraphHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := graphKey(r)
	if key == "" {
		h.errors.Handle(w, r, appErrors.NewValidationError("graph key is required"))
		return
	}

	var doc entities.GraphDocument
	if err := decode(w, r, h.validate, &doc); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if doc.Nodes == nil {
		doc.Nodes = []entities.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []entities.Edge{}
	}

	version, err := h.store.Put(r.Context(), key, doc)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Graph document written",
		zap.String("graphKey", key),
		zap.Int64("version", version),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("edges", len(doc.Edges)),
	)
	respondJSON(w, http.StatusOK, PutGraphResponse{Key: key, Version: version})
}

func (h *GraphHandler) stream(w http.ResponseWriter, r *http.Request, key string) {
	if h.streamer == nil {
		h.errors.HandleStatus(w, r, http.StatusNotImplemented, "snapshot streaming is not available")
		return
	}
	if key == "" {
		h.errors.Handle(w, r, appErrors.NewValidationError("graph key is required"))
		return
	}
	h.streamer.Serve(w, r, key)
}
