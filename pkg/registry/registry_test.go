package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(t *testing.T, name string) *domain.Operation {
	t.Helper()
	o, err := domain.NewOperation(name)
	require.NoError(t, err)
	return o
}

func TestRegistry_Execute(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)

	var got any
	r.Register("greet", func(_ context.Context, arg any) error {
		got = arg
		return nil
	})
	r.Register("fail", func(context.Context, any) error {
		return errors.New("boom")
	})

	require.NoError(t, r.Execute(ctx, op(t, "greet"), "world"))
	assert.Equal(t, "world", got)

	assert.EqualError(t, r.Execute(ctx, op(t, "fail"), nil), "boom")
	assert.ErrorContains(t, r.Execute(ctx, op(t, "missing"), nil), `"missing"`)
	assert.Equal(t, []string{"fail", "greet"}, r.Names())
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	r.Register("x", func(context.Context, any) error { return errors.New("old") })
	r.Register("x", func(context.Context, any) error { calls++; return nil })

	require.NoError(t, r.Execute(context.Background(), op(t, "x"), nil))
	assert.Equal(t, 1, calls)
}

func TestRegistry_Fallback(t *testing.T) {
	var fellBack []string
	r := NewRegistry(ports.ExecutorFunc(func(_ context.Context, o *domain.Operation, _ any) error {
		fellBack = append(fellBack, o.Name())
		return nil
	}))
	r.Register("known", func(context.Context, any) error { return nil })

	require.NoError(t, r.Execute(context.Background(), op(t, "known"), nil))
	require.NoError(t, r.Execute(context.Background(), op(t, "unknown"), nil))
	assert.Equal(t, []string{"unknown"}, fellBack)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(nil)
	target := op(t, "op")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("op", func(context.Context, any) error { return nil })
		}()
		go func() {
			defer wg.Done()
			_ = r.Execute(context.Background(), target, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"op"}, r.Names())
}
