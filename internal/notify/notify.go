// Package notify publishes user-visible status changes. Delivery is
// fire-and-forget: a failed publish is logged and never undoes the change
// that caused it.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medeasy/marketplace/internal/lifecycle"
)

// Event is the message sent for a status change.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	Status     string    `json:"status"`
	Recipients []int64   `json:"recipients,omitempty"`
	OccurredAt time.Time `json:"timestamp"`
}

// NewEvent names the event after the kind and the status reached, for
// example "order.confirmed".
func NewEvent(kind lifecycle.Kind, entityID string, status lifecycle.Status, recipients ...int64) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       string(kind) + "." + strings.ToLower(string(status)),
		EntityKind: string(kind),
		EntityID:   entityID,
		Status:     string(status),
		Recipients: recipients,
		OccurredAt: time.Now().UTC(),
	}
}

// Dispatcher sends one event synchronously.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// Notifier is the fire-and-forget side used by the fulfillment service.
type Notifier interface {
	Notify(e Event)
}

// LogDispatcher writes events to the log. Used when no broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, e Event) error {
	d.logger.Info("notification",
		zap.String("event_id", e.ID),
		zap.String("event_type", e.Type),
		zap.String("entity_id", e.EntityID),
		zap.Int64s("recipients", e.Recipients),
	)
	return nil
}

// Async runs each dispatch on its own goroutine with a deadline.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Dispatcher, timeout time.Duration, logger *zap.Logger) *Async {
	return &Async{next: next, timeout: timeout, logger: logger}
}

func (a *Async) Notify(e Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Dispatch(ctx, e); err != nil {
			a.logger.Error("failed to dispatch notification",
				zap.String("event_type", e.Type),
				zap.String("entity_id", e.EntityID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight dispatches finish. Called on shutdown.
func (a *Async) Wait() {
	a.wg.Wait()
}
