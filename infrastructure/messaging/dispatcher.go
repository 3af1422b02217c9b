// Package messaging fans domain events out to in-process handlers and an optional remote bus.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"concept-tree/application/ports"
	"concept-tree/domain/events"

	"go.uber.org/zap"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// Handler processes one domain event
type Handler func(ctx context.Context, event events.DomainEvent) error

// Dispatcher delivers events to local handlers and then forwards them downstream.
// Local handler failures are logged and never fail the publish.
type Dispatcher struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	downstream ports.EventPublisher
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher. downstream may be nil.
func NewDispatcher(downstream ports.EventPublisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers:   make(map[string][]Handler),
		downstream: downstream,
		logger:     logger,
	}
}

// Subscribe registers a handler for an event type, or AllEvents
func (d *Dispatcher) Subscribe(eventType string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish dispatches a single event
func (d *Dispatcher) Publish(ctx context.Context, event events.DomainEvent) error {
	return d.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch dispatches the events locally in order and forwards the batch downstream
func (d *Dispatcher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	start := time.Now()
	failed := 0
	for _, event := range domainEvents {
		for _, handler := range d.handlersFor(event.GetEventType()) {
			if err := handler(ctx, event); err != nil {
				failed++
				d.logger.Warn("Failed to dispatch event locally",
					zap.String("eventType", event.GetEventType()),
					zap.String("aggregateID", event.GetAggregateID()),
					zap.Error(err),
				)
			}
		}
	}

	d.logger.Debug("Events dispatched locally",
		zap.Int("total", len(domainEvents)),
		zap.Int("failedHandlers", failed),
		zap.Duration("duration", time.Since(start)),
	)

	if d.downstream == nil {
		return nil
	}
	if err := d.downstream.PublishBatch(ctx, domainEvents); err != nil {
		return fmt.Errorf("failed to forward %d events: %w", len(domainEvents), err)
	}
	return nil
}

func (d *Dispatcher) handlersFor(eventType string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Handler, 0, len(d.handlers[eventType])+len(d.handlers[AllEvents]))
	out = append(out, d.handlers[eventType]...)
	return append(out, d.handlers[AllEvents]...)
}

// LogHandler writes every event to the logger at info level
func LogHandler(logger *zap.Logger) Handler {
	return func(_ context.Context, event events.DomainEvent) error {
		logger.Info("Domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Time("timestamp", event.GetTimestamp()),
		)
		return nil
	}
}
