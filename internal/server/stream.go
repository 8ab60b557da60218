package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/camtrack/internal/vision"
)

// StreamHandler serves images from a source as an MJPEG stream.
type StreamHandler struct {
	source   func() *vision.Image
	encode   func(*vision.Image) ([]byte, error)
	interval time.Duration
	// maxParts stops the stream after that many parts when positive.
	maxParts int
}

// NewStreamHandler creates a new StreamHandler. source returns nil while no image
// is available.
func NewStreamHandler(source func() *vision.Image, encode func(*vision.Image) ([]byte, error), interval time.Duration) *StreamHandler {
	return &StreamHandler{source: source, encode: encode, interval: interval}
}

// ServeHTTP streams MJPEG parts to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	parts := 0
	for {
		if img := h.source(); !img.Empty() {
			if buf, err := h.encode(img); err == nil {
				fmt.Fprintf(w, "--frame\r\n")
				fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
				fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
				w.Write(buf)
				fmt.Fprintf(w, "\r\n")

				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}

				parts++
				if h.maxParts > 0 && parts >= h.maxParts {
					return
				}
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
