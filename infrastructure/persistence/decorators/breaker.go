// Package decorators wraps the storage ports with circuit breaking, metrics and tracing.
package decorators

import (
	"context"
	"errors"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/core/entities"
	"concept-tree/domain/core/valueobjects"
	appErrors "concept-tree/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for a store circuit breaker
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32

	// OnStateChange is called with 0 closed, 1 half-open, 2 open
	OnStateChange func(name string, state int)
}

// DefaultBreakerConfig returns a default configuration for the named breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, int(to))
			}
		},
		// answers about missing or invalid records are not backend failures
		IsSuccessful: func(err error) bool {
			return err == nil || appErrors.IsNotFound(err) || appErrors.IsValidation(err) ||
				errors.Is(err, context.Canceled)
		},
	})
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, appErrors.NewUnavailableError(cb.Name()).WithCause(err)
	}
	if err != nil {
		return zero, err
	}
	value, _ := result.(T)
	return value, nil
}

// BreakerDocumentStore fails fast while the document backend is unhealthy
type BreakerDocumentStore struct {
	inner ports.GraphDocumentStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerDocumentStore wraps a document store with a circuit breaker
func NewBreakerDocumentStore(inner ports.GraphDocumentStore, cfg BreakerConfig, logger *zap.Logger) *BreakerDocumentStore {
	return &BreakerDocumentStore{inner: inner, cb: newBreaker(cfg, logger)}
}

// Get reads through the breaker
func (s *BreakerDocumentStore) Get(ctx context.Context, key string) (*ports.VersionedDocument, error) {
	return execute(s.cb, func() (*ports.VersionedDocument, error) {
		return s.inner.Get(ctx, key)
	})
}

// Put writes through the breaker
func (s *BreakerDocumentStore) Put(ctx context.Context, key string, doc entities.GraphDocument) (int64, error) {
	return execute(s.cb, func() (int64, error) {
		return s.inner.Put(ctx, key, doc)
	})
}

// Subscribe guards only the opening of the feed
func (s *BreakerDocumentStore) Subscribe(ctx context.Context, key string) (<-chan ports.DocumentSnapshot, error) {
	return execute(s.cb, func() (<-chan ports.DocumentSnapshot, error) {
		return s.inner.Subscribe(ctx, key)
	})
}

// BreakerArticleStore fails fast while the article backend is unhealthy
type BreakerArticleStore struct {
	inner ports.ArticleStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerArticleStore wraps an article store with a circuit breaker
func NewBreakerArticleStore(inner ports.ArticleStore, cfg BreakerConfig, logger *zap.Logger) *BreakerArticleStore {
	return &BreakerArticleStore{inner: inner, cb: newBreaker(cfg, logger)}
}

// Create writes through the breaker
func (s *BreakerArticleStore) Create(ctx context.Context, title, content string) (valueobjects.ArticleID, error) {
	return execute(s.cb, func() (valueobjects.ArticleID, error) {
		return s.inner.Create(ctx, title, content)
	})
}

// Get reads through the breaker
func (s *BreakerArticleStore) Get(ctx context.Context, id valueobjects.ArticleID) (*entities.Article, error) {
	return execute(s.cb, func() (*entities.Article, error) {
		return s.inner.Get(ctx, id)
	})
}

// Update writes through the breaker
func (s *BreakerArticleStore) Update(ctx context.Context, id valueobjects.ArticleID, patch entities.ArticlePatch) error {
	_, err := execute(s.cb, func() (struct{}, error) {
		return struct{}{}, s.inner.Update(ctx, id, patch)
	})
	return err
}
