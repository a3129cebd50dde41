// Package eventbus provides implementations of the EventBus interface.
package eventbus

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/ports"
)

// ErrClosed is returned by Close when the bus was already closed.
var ErrClosed = errors.New("event bus already closed")

// wildcard marks subscriptions that receive every event type.
const wildcard domain.EventType = "*"

// SyncEventBus delivers events synchronously, in subscription order, on the
// publisher's goroutine. Type-specific handlers run before wildcard handlers.
//
// Thread-safety: publishing and (un)subscribing may happen concurrently. Handlers
// may publish or unsubscribe from inside a handler; the delivery list is a snapshot.
type SyncEventBus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	closed bool
}

type subscription struct {
	id        domain.SubscriptionID
	eventType domain.EventType
	handler   domain.EventHandler
}

// NewSyncEventBus creates a new synchronous event bus.
// A nil logger disables panic and delivery logging.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	return &SyncEventBus{logger: logger}
}

// Publish delivers event to every matching handler.
// Panics in handlers are recovered and logged and do not stop delivery.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	var typed, all []domain.EventHandler
	for _, s := range bus.subs {
		switch s.eventType {
		case event.Type():
			typed = append(typed, s.handler)
		case wildcard:
			all = append(all, s.handler)
		}
	}
	bus.mu.RUnlock()

	for _, h := range typed {
		bus.deliver(h, event)
	}
	for _, h := range all {
		bus.deliver(h, event)
	}
}

func (bus *SyncEventBus) deliver(handler domain.EventHandler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil && bus.logger != nil {
			bus.logger.Error("event handler panicked",
				slog.Any("panic", r),
				slog.String("event_type", string(event.Type())))
		}
	}()
	handler(event)
}

// Subscribe registers handler for eventType and returns its subscription ID.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	return bus.add(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	return bus.add(wildcard, handler)
}

func (bus *SyncEventBus) add(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	if handler == nil {
		panic("event handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	bus.nextID++
	prefix := "sub-"
	if eventType == wildcard {
		prefix = "sub-all-"
	}
	id := domain.SubscriptionID(prefix + strconv.FormatUint(bus.nextID, 10))
	bus.subs = append(bus.subs, subscription{id: id, eventType: eventType, handler: handler})
	return id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
// Order of the remaining subscriptions is preserved.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	for i, s := range bus.subs {
		if s.id == id {
			bus.subs = append(bus.subs[:i:i], bus.subs[i+1:]...)
			return
		}
	}
}

// HasSubscribers reports whether any handler would receive an event of eventType.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, s := range bus.subs {
		if s.eventType == eventType || s.eventType == wildcard {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of active subscriptions.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subs)
}

// Close drops all subscriptions. Later publishes are ignored.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return ErrClosed
	}
	bus.closed = true
	bus.subs = nil
	return nil
}

var _ ports.EventBus = (*SyncEventBus)(nil)
