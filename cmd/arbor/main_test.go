package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/compiler"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const examplePath = "../../testdata/example.xml"

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "arbor version "+strings.TrimSpace(arbor.Version)+"\n", out)
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		out, err := run(t, "", "validate", examplePath)
		require.NoError(t, err)
		assert.Contains(t, out, "resolves")
	})

	t.Run("Broken", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: root\ntransitions:\n  - name: go\n    target: nowhere\n"), 0o644))

		out, err := run(t, "", "validate", "--strict", path)
		require.Error(t, err)
		assert.Len(t, domain.IssuesOf(err), 1)
		assert.Contains(t, out, "`root/transition:go`")
	})

	t.Run("No Graph", func(t *testing.T) {
		_, err := run(t, "", "validate")
		assert.ErrorContains(t, err, "no graph document")
	})
}

func TestGraph(t *testing.T) {
	out, err := run(t, "", "graph", "--graph", examplePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))

	out, err = run(t, "", "graph", "--markdown", examplePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "```mermaid\n"))

	out, err = run(t, "", "graph", "-o", "yaml", examplePath)
	require.NoError(t, err)
	converted, err := compiler.NewParser(compiler.FormatYAML).Parse([]byte(out))
	require.NoError(t, err)
	data, err := os.ReadFile(examplePath)
	require.NoError(t, err)
	original, err := compiler.NewParser(compiler.FormatXML).Parse(data)
	require.NoError(t, err)
	assert.True(t, original.Equal(converted))

	_, err = run(t, "", "graph", "-o", "dot", examplePath)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	out, err := run(t, "init\napply stop\nquit\n", "run", "--plain", examplePath)
	require.NoError(t, err)
	assert.Contains(t, out, "⚙ create")
	assert.Contains(t, out, "#2 started -[stop]-> stopped")
	assert.NotContains(t, out, "|_.__/", "no banner in plain mode")
}

func TestRunOperations(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	path := filepath.Join(t.TempDir(), "operations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
operations:
  - name: create
    command: sh
    args: ["-c", "echo created by $ARBOR_OPERATION"]
`), 0o644))

	out, err := run(t, "init\nexec audit\nquit\n", "run", "--plain", "--operations", path, examplePath)
	require.NoError(t, err)
	assert.Contains(t, out, "created by create")
	assert.NotContains(t, out, "⚙ create", "registered operations run as processes")
	assert.Contains(t, out, "⚙ audit", "the others are echoed")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph: "+examplePath+"\nlog_level: loud\n"), 0o644))

	_, err := run(t, "", "graph", "--config", path)
	assert.ErrorContains(t, err, "unknown log level")

	out, err := run(t, "", "graph", "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "component((")
}

func TestServeStack(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Graph = examplePath
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.StatePrefix = "arbor:"

	st, err := buildStack(cfg, logging.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(st.handler)
	defer srv.Close()

	post := func(path, body string) int {
		resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	require.Equal(t, http.StatusCreated, post("/machines", `{"id":"m1"}`))
	require.Equal(t, http.StatusOK, post("/machines/m1/initialize", ""))

	require.NoError(t, st.dispatcher.Flush(context.Background()))
	assert.Equal(t, "started", mr.HGet("arbor:machine:m1", "state"))

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, body.String(), `arbor_machines{state="started"} 1`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, st.Close(ctx))
	assert.False(t, mr.Exists("arbor:machine:m1"), "disposal removes the mirror")
}
