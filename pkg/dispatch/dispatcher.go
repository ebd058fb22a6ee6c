// Package dispatch provides the asynchronous event dispatcher that delivers
// machine state changes to listeners.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithBuffer preallocates room for n queued events.
// The queue still grows past n; Post never blocks.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make([]item, 0, n)
		}
	}
}

type item struct {
	event   domain.StateChangeEvent
	barrier chan struct{}
}

type subscriber struct {
	id       ports.Subscription
	listener ports.Listener
}

// Dispatcher delivers events on a single worker goroutine, one at a time and
// in post order. It implements ports.EventDispatcher.
type Dispatcher struct {
	logger *slog.Logger

	mu          sync.Mutex
	queue       []item
	subscribers []subscriber
	nextID      ports.Subscription
	closed      bool

	wake      chan struct{}
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ ports.EventDispatcher = (*Dispatcher)(nil)

// New starts a dispatcher. Call Close to stop its worker.
func New(opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger: logging.NewNop(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Post enqueues event for delivery. Events posted after Close are dropped.
func (d *Dispatcher) Post(event domain.StateChangeEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("dropping event posted after close", "machine_id", event.MachineID, "sequence", event.Sequence)
		return
	}
	d.queue = append(d.queue, item{event: event})
	d.mu.Unlock()
	d.signal()
}

// Subscribe registers listener. Listeners are notified in subscription order.
func (d *Dispatcher) Subscribe(listener ports.Listener) ports.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subscribers = append(d.subscribers, subscriber{id: d.nextID, listener: listener})
	return d.nextID
}

// Unsubscribe removes the listener registered under sub. Unknown subscriptions are ignored.
func (d *Dispatcher) Unsubscribe(sub ports.Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subscribers {
		if s.id == sub {
			// Copy on write: the worker may be iterating a snapshot.
			next := make([]subscriber, 0, len(d.subscribers)-1)
			next = append(next, d.subscribers[:i]...)
			d.subscribers = append(next, d.subscribers[i+1:]...)
			return
		}
	}
}

// Flush blocks until every event posted before the call has been delivered,
// the dispatcher is closed, or ctx is done. It must not be called from a listener.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.queue = append(d.queue, item{barrier: barrier})
	d.mu.Unlock()
	d.signal()

	select {
	case <-barrier:
		return nil
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops delivery and drops queued events. It does not wait for the
// listener currently running, so a listener may close its own dispatcher.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		dropped := 0
		for _, it := range d.queue {
			if it.barrier == nil {
				dropped++
			}
		}
		d.queue = nil
		d.mu.Unlock()

		d.cancel()
		close(d.done)
		if dropped > 0 {
			d.logger.Debug("dispatcher closed with pending events", "dropped", dropped)
		}
	})
	return nil
}

// Pending reports how many events are queued and not yet delivered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, it := range d.queue {
		if it.barrier == nil {
			n++
		}
	}
	return n
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}
		for {
			it, listeners, ok := d.next()
			if !ok {
				break
			}
			if it.barrier != nil {
				close(it.barrier)
				continue
			}
			for _, s := range listeners {
				if d.isClosed() {
					return
				}
				d.deliver(s, it.event)
			}
		}
	}
}

// next pops the head of the queue together with a snapshot of the listeners.
func (d *Dispatcher) next() (item, []subscriber, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(d.queue) == 0 {
		return item{}, nil, false
	}
	it := d.queue[0]
	d.queue[0] = item{}
	d.queue = d.queue[1:]
	return it, d.subscribers, true
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher) deliver(s subscriber, event domain.StateChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("listener panicked",
				"subscription", uint64(s.id),
				"machine_id", event.MachineID,
				"sequence", event.Sequence,
				"error", fmt.Errorf("panic: %v", r))
		}
	}()
	s.listener.OnEvent(d.ctx, event)
}
