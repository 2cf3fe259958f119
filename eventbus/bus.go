package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"example.com/taskboard/domain"
)

// Handler consumes published domain events.
type Handler interface {
	HandleEvent(ctx context.Context, event domain.Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event domain.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// Bus is an in-process publish/subscribe fan-out partitioned by event kind.
// The subscription table is built explicitly by the composition root; there
// is no package-level registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event kind. Handlers run in
// subscription order on publish.
func (b *Bus) Subscribe(kind string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish delivers the event to every handler subscribed to its kind,
// sequentially. A handler failure is logged and isolated: later handlers
// still run, and the publish itself never fails because of a handler. The
// event is already committed by the time it is published; recovery is the
// full rebuild from history.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Kind]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("eventKind", event.Kind).
				Str("aggregateID", event.AggregateID).
				Int("version", event.Version).
				Msg("Event handler failed")
		}
	}
}
