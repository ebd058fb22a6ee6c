package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Listener receives state-change notifications.
// Listeners run on the dispatcher's goroutine, never on the caller of Apply,
// so a listener may safely drive the machine that notified it.
type Listener interface {
	OnEvent(ctx context.Context, event domain.StateChangeEvent)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, event domain.StateChangeEvent)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(ctx context.Context, event domain.StateChangeEvent) {
	f(ctx, event)
}

// Subscription identifies a registered listener.
type Subscription uint64

// EventDispatcher delivers events asynchronously and in post order.
type EventDispatcher interface {
	// Post enqueues an event. It never blocks on listener execution.
	Post(event domain.StateChangeEvent)

	// Subscribe registers a listener. Safe to call concurrently with delivery.
	Subscribe(listener Listener) Subscription

	// Unsubscribe removes a listener. Safe to call concurrently with delivery.
	Unsubscribe(sub Subscription)

	// Close stops delivery. Events still queued are dropped.
	Close() error
}
