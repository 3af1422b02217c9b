package handlers

import (
	"net/http"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	"concept-tree/domain/events"
	appErrors "concept-tree/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CreateArticleRequest is the body of POST /articles
type CreateArticleRequest struct {
	Title   string `json:"title" validate:"required,max=500"`
	Content string `json:"content" validate:"max=1048576"`
}

// CreateArticleResponse is the body returned after creating an article
type CreateArticleResponse struct {
	ID valueobjects.ArticleID `json:"id"`
}

// PatchArticleRequest is the body of PATCH /articles/{id}
type PatchArticleRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=500"`
	Content *string `json:"content,omitempty" validate:"omitempty,max=1048576"`
}

// ArticleHandler serves article documents
type ArticleHandler struct {
	store     ports.ArticleStore
	publisher ports.EventPublisher
	validate  *validator.Validate
	errors    *appErrors.ErrorHandler
	logger    *zap.Logger
}

// NewArticleHandler creates a new article handler. publisher may be nil.
func NewArticleHandler(store ports.ArticleStore, publisher ports.EventPublisher, validate *validator.Validate, errs *appErrors.ErrorHandler, logger *zap.Logger) *ArticleHandler {
	return &ArticleHandler{
		store:     store,
		publisher: publisher,
		validate:  validate,
		errors:    errs,
		logger:    logger,
	}
}

// Create handles POST /articles
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	id, err := h.store.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.publish(r, events.NewArticleCreated(id, req.Title, time.Now()))
	respondJSON(w, http.StatusCreated, CreateArticleResponse{ID: id})
}

// Get handles GET /articles/{articleID}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := valueobjects.ArticleID(chi.URLParam(r, "articleID"))

	article, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, article)
}

// Patch handles PATCH /articles/{articleID} with merge semantics
func (h *ArticleHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := valueobjects.ArticleID(chi.URLParam(r, "articleID"))

	var req PatchArticleRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	patch := entities.ArticlePatch{Title: req.Title, Content: req.Content}
	if patch.IsEmpty() {
		h.errors.Handle(w, r, appErrors.NewValidationError("patch must set title or content"))
		return
	}

	if err := h.store.Update(r.Context(), id, patch); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var fields []string
	if patch.Title != nil {
		fields = append(fields, "title")
	}
	if patch.Content != nil {
		fields = append(fields, "content")
	}
	h.publish(r, events.NewArticleUpdated(id, fields, time.Now()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ArticleHandler) publish(r *http.Request, event events.DomainEvent) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		h.logger.Warn("Failed to publish article event",
			zap.String("eventType", event.GetEventType()),
			zap.String("articleID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
