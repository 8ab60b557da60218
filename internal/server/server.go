// Package server provides the HTTP server for the camtrack tracking service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/camtrack/internal/app"
	"github.com/ayusman/camtrack/internal/server/api"
	"github.com/ayusman/camtrack/internal/vision"
	"github.com/ayusman/camtrack/internal/vision/cv"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	// Encoder turns stream images into JPEG. Defaults to the OpenCV encoder.
	Encoder func(*vision.Image) ([]byte, error)
	// StreamInterval is the delay between MJPEG parts.
	StreamInterval time.Duration
}

// Server represents the HTTP server for the camtrack application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Encoder == nil {
		config.Encoder = cv.EncodeJPEG
	}
	if config.StreamInterval <= 0 {
		config.StreamInterval = 66 * time.Millisecond // ~15 FPS
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		a := s.config.App
		api.NewTrackingHandler(a).Register(s.mux)

		s.mux.Handle("/api/track/ws", NewTrackHandler(a))
		s.mux.Handle("/api/stream", NewStreamHandler(a.Frame, s.config.Encoder, s.config.StreamInterval))
		s.mux.Handle("/api/backprojection", NewStreamHandler(backProjection(a), s.config.Encoder, s.config.StreamInterval))

		// Register session and preset APIs if a store is configured
		if st := a.Store(); st != nil {
			sessionHandler := api.NewSessionHandler(st)
			s.mux.Handle("/api/sessions", sessionHandler)
			s.mux.Handle("/api/sessions/", sessionHandler)

			presetHandler := api.NewPresetHandler(a)
			s.mux.Handle("/api/presets", presetHandler)
			s.mux.Handle("/api/presets/", presetHandler)
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// backProjection adapts the density map getter to a stream source; before the
// first tracking step there is nothing to show.
func backProjection(a *app.App) func() *vision.Image {
	return func() *vision.Image {
		img, err := a.BackProjection()
		if err != nil {
			return nil
		}
		return img
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		snap := s.config.App.Snapshot()
		response["running"] = s.config.App.Running()
		response["tracking"] = snap.Tracking
		response["frame"] = snap.Frame
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
