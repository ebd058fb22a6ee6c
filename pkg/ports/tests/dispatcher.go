package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DispatcherContractTest runs a suite of tests to verify that an EventDispatcher
// implementation adheres to the defined interface contract. newDispatcher must
// return a fresh, running dispatcher on every call.
func DispatcherContractTest(t *testing.T, newDispatcher func() ports.EventDispatcher) {
	event := func(seq uint64) domain.StateChangeEvent {
		return domain.StateChangeEvent{
			Type:      domain.EventStateChanged,
			MachineID: "contract",
			Sequence:  seq,
		}
	}

	t.Run("Delivers In Post Order", func(t *testing.T) {
		d := newDispatcher()
		defer d.Close()

		const n = 50
		got := make(chan uint64, n)
		d.Subscribe(ports.ListenerFunc(func(_ context.Context, e domain.StateChangeEvent) {
			got <- e.Sequence
		}))

		for i := uint64(1); i <= n; i++ {
			d.Post(event(i))
		}
		for want := uint64(1); want <= n; want++ {
			select {
			case seq := <-got:
				require.Equal(t, want, seq, "events must arrive in post order")
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for event %d", want)
			}
		}
	})

	t.Run("Post Does Not Block On Listener", func(t *testing.T) {
		d := newDispatcher()
		release := make(chan struct{})
		defer func() {
			close(release)
			d.Close()
		}()

		d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
			<-release
		}))

		posted := make(chan struct{})
		go func() {
			for i := uint64(1); i <= 100; i++ {
				d.Post(event(i))
			}
			close(posted)
		}()

		select {
		case <-posted:
		case <-time.After(2 * time.Second):
			t.Fatal("Post blocked while a listener was busy")
		}
	})

	t.Run("Unsubscribe Stops Delivery", func(t *testing.T) {
		d := newDispatcher()
		defer d.Close()

		var mu sync.Mutex
		var removedCalls int
		removed := d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
			mu.Lock()
			removedCalls++
			mu.Unlock()
		}))
		d.Unsubscribe(removed)

		seen := make(chan struct{}, 1)
		d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
			seen <- struct{}{}
		}))

		d.Post(event(1))
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatal("remaining listener was not notified")
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, removedCalls, "unsubscribed listener must not be notified")
	})

	t.Run("Close Is Idempotent And Drops Posts", func(t *testing.T) {
		d := newDispatcher()
		calls := make(chan struct{}, 1)
		d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
			calls <- struct{}{}
		}))

		require.NoError(t, d.Close())
		require.NoError(t, d.Close())
		d.Post(event(1))

		select {
		case <-calls:
			t.Fatal("listener notified after Close")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
