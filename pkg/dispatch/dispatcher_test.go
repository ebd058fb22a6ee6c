package dispatch_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	contract "github.com/aretw0/arbor/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Contract(t *testing.T) {
	contract.DispatcherContractTest(t, func() ports.EventDispatcher {
		return dispatch.New()
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDispatcher_ListenerPanicIsContained(t *testing.T) {
	var logs syncBuffer
	d := dispatch.New(dispatch.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	defer d.Close()

	d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
		panic("boom")
	}))
	var got []uint64
	var mu sync.Mutex
	d.Subscribe(ports.ListenerFunc(func(_ context.Context, e domain.StateChangeEvent) {
		mu.Lock()
		got = append(got, e.Sequence)
		mu.Unlock()
	}))

	d.Post(domain.StateChangeEvent{Sequence: 1})
	d.Post(domain.StateChangeEvent{Sequence: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))

	mu.Lock()
	assert.Equal(t, []uint64{1, 2}, got)
	mu.Unlock()
	assert.Contains(t, logs.String(), "listener panicked")
}

func TestDispatcher_FlushWaitsForDelivery(t *testing.T) {
	d := dispatch.New(dispatch.WithBuffer(4))
	defer d.Close()

	var mu sync.Mutex
	delivered := 0
	d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		delivered++
		mu.Unlock()
	}))

	for i := uint64(1); i <= 10; i++ {
		d.Post(domain.StateChangeEvent{Sequence: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, delivered)
	assert.Zero(t, d.Pending())
}

func TestDispatcher_FlushHonorsContext(t *testing.T) {
	d := dispatch.New()
	release := make(chan struct{})
	defer func() {
		close(release)
		d.Close()
	}()
	d.Subscribe(ports.ListenerFunc(func(context.Context, domain.StateChangeEvent) {
		<-release
	}))
	d.Post(domain.StateChangeEvent{Sequence: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Flush(ctx), context.DeadlineExceeded)
}

func TestDispatcher_ListenerMayCloseDispatcher(t *testing.T) {
	d := dispatch.New()

	var mu sync.Mutex
	var seen []uint64
	closed := make(chan struct{})
	d.Subscribe(ports.ListenerFunc(func(_ context.Context, e domain.StateChangeEvent) {
		mu.Lock()
		seen = append(seen, e.Sequence)
		mu.Unlock()
		if e.Sequence == 1 {
			require.NoError(t, d.Close())
			close(closed)
		}
	}))

	d.Post(domain.StateChangeEvent{Sequence: 1})
	d.Post(domain.StateChangeEvent{Sequence: 2})

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not close the dispatcher")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1}, seen, "events queued before Close are dropped")
	assert.Zero(t, d.Pending())
}

func TestDispatcher_ListenerContextCanceledOnClose(t *testing.T) {
	d := dispatch.New()
	started := make(chan struct{})
	finished := make(chan error, 1)
	d.Subscribe(ports.ListenerFunc(func(ctx context.Context, _ domain.StateChangeEvent) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
	}))
	d.Post(domain.StateChangeEvent{Sequence: 1})

	<-started
	require.NoError(t, d.Close())
	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener context was not canceled")
	}
}
