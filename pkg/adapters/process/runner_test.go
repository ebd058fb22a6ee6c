package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func operation(t *testing.T, name string) *domain.Operation {
	t.Helper()
	op, err := domain.NewOperation(name)
	require.NoError(t, err)
	return op
}

func TestRunner_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx := context.Background()

	t.Run("Executes Registered Command", func(t *testing.T) {
		var out bytes.Buffer
		r := NewRunner(WithOutput(&out))
		r.Register("hello", "sh", "-c", "echo hello from $ARBOR_OPERATION")

		require.NoError(t, r.Execute(ctx, operation(t, "hello"), nil))
		assert.Equal(t, "hello from hello\n", out.String())
	})

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		var out bytes.Buffer
		r := NewRunner(WithOutput(&out))
		r.Register("echo_env", "sh", "-c", `echo "$ARBOR_ARG_MSG|$ARBOR_ARG_LEVEL|$ARBOR_ARG"`)

		arg := map[string]any{"msg": "SecretMessage", "level": float64(2)}
		require.NoError(t, r.Execute(ctx, operation(t, "echo_env"), arg))
		assert.Equal(t, `SecretMessage|2|{"level":2,"msg":"SecretMessage"}`+"\n", out.String())
	})

	t.Run("Failure Carries Stderr", func(t *testing.T) {
		r := NewRunner()
		r.Register("broken", "sh", "-c", "echo disk full >&2; exit 3")

		err := r.Execute(ctx, operation(t, "broken"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		err := NewRunner().Execute(ctx, operation(t, "hacker_script"), "; rm -rf /")
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Fallback", func(t *testing.T) {
		var called string
		r := NewRunner(WithFallback(ports.ExecutorFunc(func(_ context.Context, op *domain.Operation, _ any) error {
			called = op.Name()
			return errors.New("from fallback")
		})))
		err := r.Execute(ctx, operation(t, "audit"), nil)
		assert.EqualError(t, err, "from fallback")
		assert.Equal(t, "audit", called)
	})

	t.Run("Configured Environment And Directory", func(t *testing.T) {
		dir := t.TempDir()
		var out bytes.Buffer
		r := NewRunner(WithOutput(&out), WithBaseDir(dir), WithRegistry(map[string]ProcessConfig{
			"where": {Name: "where", Command: "sh", Args: []string{"-c", "echo $MODE; pwd"}, Environment: map[string]string{"MODE": "test"}},
		}))
		require.NoError(t, r.Execute(ctx, operation(t, "where"), nil))
		resolved, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "test\n")
		assert.Contains(t, out.String(), filepath.Base(resolved))
	})
}

func TestLoadOperations(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "operations.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
operations:
  - name: create
    command: ./create.sh
    args: [--fast]
    env:
      REGION: eu
`), 0o644))
		ops, err := LoadOperations(path)
		require.NoError(t, err)
		require.Contains(t, ops, "create")
		assert.Equal(t, []string{"--fast"}, ops["create"].Args)
		assert.Equal(t, "eu", ops["create"].Environment["REGION"])
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "operations.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"operations":[{"name":"halt","command":"true"}]}`), 0o644))
		ops, err := LoadOperations(path)
		require.NoError(t, err)
		assert.Equal(t, "true", ops["halt"].Command)
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(dir, "dup.yaml")
		require.NoError(t, os.WriteFile(path, []byte("operations:\n  - {name: a, command: x}\n  - {name: a, command: y}\n"), 0o644))
		_, err := LoadOperations(path)
		assert.ErrorContains(t, err, "declared twice")

		path = filepath.Join(dir, "nameless.yaml")
		require.NoError(t, os.WriteFile(path, []byte("operations:\n  - command: x\n"), 0o644))
		_, err = LoadOperations(path)
		assert.ErrorContains(t, err, "needs a name")

		_, err = LoadOperations(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
