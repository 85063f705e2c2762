package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/app"
	"github.com/ayusman/personlens/internal/capture"
)

// fakeController records calls and mimics app.Controller's error behaviour.
type fakeController struct {
	mu      sync.Mutex
	source  string
	mode    string
	state   string
	plays   int
	stops   int
	openErr error
}

func newFakeController() *fakeController {
	return &fakeController{mode: string(annotate.DefaultMode), state: "idle"}
}

func (f *fakeController) LoadSource(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if path == "/missing.mp4" {
		return fmt.Errorf("%w: %s", capture.ErrSourceUnavailable, path)
	}
	f.source = path
	f.state = "idle"
	return nil
}

func (f *fakeController) SetMode(name string) error {
	m, err := annotate.ParseMode(name)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = string(m)
	f.state = "idle"
	return nil
}

func (f *fakeController) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	if f.source == "" {
		return nil
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.state = "running"
	return nil
}

func (f *fakeController) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = "idle"
}

func (f *fakeController) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return app.Status{State: f.state, Source: f.source, Mode: f.mode}
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestControlHandler_Status(t *testing.T) {
	handler := NewControlHandler(newFakeController())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var st app.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if st.State != "idle" || st.Mode != "Ellipse" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestControlHandler_Modes(t *testing.T) {
	handler := NewControlHandler(newFakeController())

	req := httptest.NewRequest(http.MethodGet, "/api/modes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp modesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Modes) != len(annotate.Modes()) {
		t.Errorf("expected %d modes, got %d", len(annotate.Modes()), len(resp.Modes))
	}
	if resp.Current != "Ellipse" {
		t.Errorf("expected current Ellipse, got %q", resp.Current)
	}
}

func TestControlHandler_Source(t *testing.T) {
	ctrl := newFakeController()
	handler := NewControlHandler(ctrl)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid path", `{"path": "/videos/a.mp4"}`, http.StatusOK},
		{"missing path", `{}`, http.StatusBadRequest},
		{"invalid JSON", `{path`, http.StatusBadRequest},
		{"unavailable source", `{"path": "/missing.mp4"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, handler, "/api/source", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}

	if ctrl.Status().Source != "/videos/a.mp4" {
		t.Errorf("expected source to stay /videos/a.mp4, got %q", ctrl.Status().Source)
	}
}

func TestControlHandler_Mode(t *testing.T) {
	ctrl := newFakeController()
	handler := NewControlHandler(ctrl)

	rec := post(t, handler, "/api/mode", `{"mode": "heatmap"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ctrl.Status().Mode != "HeatMap" {
		t.Errorf("expected mode HeatMap, got %q", ctrl.Status().Mode)
	}

	rec = post(t, handler, "/api/mode", `{"mode": "glitter"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for unknown mode, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestControlHandler_Play(t *testing.T) {
	ctrl := newFakeController()
	handler := NewControlHandler(ctrl)

	rec := post(t, handler, "/api/play", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d without a source, got %d", http.StatusConflict, rec.Code)
	}
	if ctrl.plays != 1 {
		t.Errorf("expected Play to reach the controller, got %d calls", ctrl.plays)
	}

	post(t, handler, "/api/source", `{"path": "/videos/a.mp4"}`)
	rec = post(t, handler, "/api/play", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ctrl.Status().State != "running" {
		t.Errorf("expected running, got %q", ctrl.Status().State)
	}

	ctrl.openErr = fmt.Errorf("%w: broken", capture.ErrSourceUnavailable)
	rec = post(t, handler, "/api/play", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d for unopenable source, got %d", http.StatusUnprocessableEntity, rec.Code)
	}

	ctrl.openErr = app.ErrClosed
	rec = post(t, handler, "/api/play", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d after close, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestControlHandler_Stop(t *testing.T) {
	ctrl := newFakeController()
	handler := NewControlHandler(ctrl)

	rec := post(t, handler, "/api/stop", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ctrl.stops != 1 {
		t.Errorf("expected 1 stop, got %d", ctrl.stops)
	}
}

func TestControlHandler_MethodNotAllowed(t *testing.T) {
	handler := NewControlHandler(newFakeController())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/status"},
		{http.MethodDelete, "/api/modes"},
		{http.MethodGet, "/api/play"},
		{http.MethodGet, "/api/source"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
