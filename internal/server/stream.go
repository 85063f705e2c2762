package server

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
)

const streamBoundary = "frame"

// StreamHandler serves the latest annotated frame as MJPEG.
type StreamHandler struct {
	sink *Sink
}

func NewStreamHandler(sink *Sink) *StreamHandler {
	return &StreamHandler{sink: sink}
}

// ServeHTTP writes one multipart part per published frame until the client
// goes away. A slow client skips frames instead of queueing them.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	release := h.sink.addViewer()
	defer release()

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(streamBoundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flush(w)

	var seq uint64
	for {
		data, next, ok := h.sink.next(r.Context(), seq)
		if !ok {
			return
		}
		seq = next

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(len(data))},
		})
		if err != nil {
			return
		}
		if _, err := part.Write(data); err != nil {
			return
		}
		flush(w)
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
