package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/personlens/internal/app"
	"github.com/ayusman/personlens/internal/store"
)

func serve(s http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	rec := serve(s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime")
	assert.Equal(t, float64(0), body["clients"])

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(s, method, "/api/health").Code, method)
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	bare := New(Config{})
	for _, path := range []string{"/api/status", "/api/sessions", "/api/nonexistent", "/"} {
		assert.Equal(t, http.StatusNotFound, serve(bare, http.MethodGet, path).Code, path)
	}

	st, err := store.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctrl := app.New(app.Config{Log: logs.NewTestingLog(t)})
	t.Cleanup(func() { ctrl.Close() })

	full := New(Config{Log: logs.NewTestingLog(t), Store: st, Controller: ctrl})

	rec := serve(full, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status app.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "idle", status.State)

	assert.Equal(t, http.StatusOK, serve(full, http.MethodGet, "/api/sessions").Code)
	assert.Equal(t, http.StatusNotFound, serve(full, http.MethodGet, "/api/sessions/missing").Code)
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>personlens</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("play()"), 0644))

	s := New(Config{StaticDir: dir})

	rec := serve(s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, index, rec.Body.String())

	rec = serve(s, http.MethodGet, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "play()", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/missing.html").Code)
}

func TestServer_SharedSink(t *testing.T) {
	sink := NewSinkWithHub(logs.NewTestingLog(t))
	s := New(Config{Sink: sink})
	assert.Same(t, sink, s.Sink())
	assert.Same(t, sink.hub, s.hub)

	assert.NotNil(t, New(Config{}).Sink())
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
