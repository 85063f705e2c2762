package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/personlens/internal/annotate"
	"github.com/ayusman/personlens/internal/app"
	"github.com/ayusman/personlens/internal/capture"
)

// Controller is the part of app.Controller the HTTP API drives.
type Controller interface {
	LoadSource(path string) error
	SetMode(name string) error
	Play() error
	Stop()
	Status() app.Status
}

// ControlHandler serves the playback endpoints under /api.
type ControlHandler struct {
	ctrl Controller
}

// NewControlHandler creates a ControlHandler driving ctrl.
func NewControlHandler(ctrl Controller) *ControlHandler {
	return &ControlHandler{ctrl: ctrl}
}

// Paths lists the routes ControlHandler answers.
var Paths = []string{"/api/status", "/api/modes", "/api/source", "/api/mode", "/api/play", "/api/stop"}

type sourceRequest struct {
	Path string `json:"path"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modesResponse struct {
	Modes   []string `json:"modes"`
	Current string   `json:"current"`
}

// ServeHTTP implements the http.Handler interface and routes requests by path.
func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/")

	switch action {
	case "status", "modes":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if action == "status" {
			writeJSON(w, http.StatusOK, h.ctrl.Status())
		} else {
			h.modes(w)
		}
	case "source", "mode", "play", "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		switch action {
		case "source":
			h.source(w, r)
		case "mode":
			h.mode(w, r)
		case "play":
			h.play(w)
		case "stop":
			h.ctrl.Stop()
			writeJSON(w, http.StatusOK, h.ctrl.Status())
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ControlHandler) modes(w http.ResponseWriter) {
	resp := modesResponse{Current: h.ctrl.Status().Mode}
	for _, m := range annotate.Modes() {
		resp.Modes = append(resp.Modes, string(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// source handles POST /api/source. Loading stops playback.
func (h *ControlHandler) source(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "Path is required")
		return
	}

	if err := h.ctrl.LoadSource(req.Path); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// mode handles POST /api/mode.
func (h *ControlHandler) mode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.ctrl.SetMode(req.Mode); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// play handles POST /api/play. Without a source the controller notifies its
// sinks and the request is answered with 409.
func (h *ControlHandler) play(w http.ResponseWriter) {
	if err := h.ctrl.Play(); err != nil {
		writeActionError(w, err)
		return
	}

	st := h.ctrl.Status()
	if st.Source == "" {
		writeError(w, http.StatusConflict, app.ErrNoSourceLoaded.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, annotate.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, capture.ErrSourceUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, app.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
