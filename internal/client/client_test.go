package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/AvengeMedia/dankquery/internal/config"
	"github.com/AvengeMedia/dankquery/internal/engine"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
[[types]]
name = "service"

  [[types.fields]]
  name = "name"
  kind = "string"
  key = true

  [[types.fields]]
  name = "port"
  kind = "int32"
  numeric = true
`

type idleWatcher struct{ running bool }

func (w *idleWatcher) Start() error {
	w.running = true
	return nil
}

func (w *idleWatcher) Stop() error {
	w.running = false
	return nil
}

func (w *idleWatcher) IsRunning() bool { return w.running }

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.IndexPath = ""
	cfg.SchemaPath = filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(cfg.SchemaPath, []byte(testSchema), 0644))

	eng, err := engine.New(cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	ts := httptest.NewServer(server.NewHTTP(":0", eng, &idleWatcher{}).Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func TestNew(t *testing.T) {
	assert.Equal(t, "http://localhost:43655", New(":43655").base)
	assert.Equal(t, "http://example.com:80", New("example.com:80").base)
	assert.Equal(t, "https://q.internal", New("https://q.internal/").base)
}

func TestClient_NotRunning(t *testing.T) {
	ts := httptest.NewServer(nil)
	addr := ts.URL
	ts.Close()

	c := New(addr)
	ctx := context.Background()
	assert.ErrorIs(t, c.Ping(ctx), ErrNotRunning)

	_, err := c.Types(ctx)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestClient_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	n, err := c.Index(ctx, "service", []fieldmap.Record{
		{"name": "ssh", "port": 22},
		{"name": "http", "port": 80},
		{"name": "dns", "port": 53},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	types, err := c.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"service"}, types.Types)
	assert.Equal(t, uint64(3), types.Documents)

	res, err := c.Search(ctx, engine.Request{Type: "service", Order: []string{"port"}, Ranges: []string{"port:50.."}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "dns", res.Hits[0].Record["name"])
	assert.Equal(t, "http", res.Hits[1].Record["name"])

	info, err := c.Mapping(ctx, "service")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, info.Keys)

	require.NoError(t, c.Delete(ctx, "service", "ssh"))
	res, err = c.Search(ctx, engine.Request{Type: "service", Where: []string{"name=ssh"}})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	status, err := c.WatchStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "watcher started", status)

	status, err = c.WatchStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "running", status)

	status, err = c.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, "schema reloaded", status)
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Mapping(context.Background(), "nope")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}
