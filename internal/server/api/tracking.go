package api

import (
	"encoding/json"
	"image"
	"net/http"

	"github.com/ayusman/camtrack/internal/app"
	"github.com/ayusman/camtrack/internal/vision"
)

// TrackingHandler exposes the tracker of a running app.
type TrackingHandler struct {
	app *app.App
}

// NewTrackingHandler creates a new TrackingHandler for the given app.
func NewTrackingHandler(a *app.App) *TrackingHandler {
	return &TrackingHandler{app: a}
}

// Register adds the tracking routes to mux.
func (h *TrackingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/params", h.handleParams)
	mux.HandleFunc("/api/selection", h.handleSelection)
	mux.HandleFunc("/api/track", h.handleTrack)
}

// Request and response types

type selectionRequest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type selectionResponse struct {
	SessionID string     `json:"session_id"`
	Seed      rectangle  `json:"seed"`
	Params    paramsBody `json:"params"`
}

type paramsBody map[string]int

type rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func toRectangle(r image.Rectangle) rectangle {
	return rectangle{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

type trackResponse struct {
	Frame     int                `json:"frame"`
	SessionID string             `json:"session_id,omitempty"`
	Tracking  bool               `json:"tracking"`
	Track     rectangle          `json:"track"`
	Rotated   vision.RotatedRect `json:"rotated"`
	Motion    float64            `json:"motion"`
	Timestamp int64              `json:"timestamp"`
}

// TrackResponse converts a snapshot into its wire form.
func TrackResponse(s app.Snapshot) interface{} {
	var ts int64
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.UnixMilli()
	}
	return trackResponse{
		Frame:     s.Frame,
		SessionID: s.SessionID,
		Tracking:  s.Tracking,
		Track:     toRectangle(s.Track),
		Rotated:   s.Rotated,
		Motion:    s.Motion,
		Timestamp: ts,
	}
}

// handleParams handles GET and PUT /api/params.
func (h *TrackingHandler) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, paramsBody(h.app.Parameters()))
	case http.MethodPut:
		var req paramsBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if len(req) == 0 {
			writeError(w, http.StatusBadRequest, "No parameters given")
			return
		}
		if err := h.app.SetParameters(req); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, paramsBody(h.app.Parameters()))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSelection handles POST /api/selection, which seeds the tracker.
func (h *TrackingHandler) handleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// image.Rect swaps reversed corners, so check the extent first.
	if req.Width <= 0 || req.Height <= 0 {
		writeError(w, http.StatusBadRequest, "Width and height must be positive")
		return
	}

	sess, err := h.app.Select(image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, selectionResponse{
		SessionID: sess.ID,
		Seed:      toRectangle(sess.Seed),
		Params:    sess.Params,
	})
}

// handleTrack handles GET /api/track and returns the latest snapshot.
func (h *TrackingHandler) handleTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse(h.app.Snapshot()))
}
