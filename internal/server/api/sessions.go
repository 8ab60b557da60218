package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/camtrack/internal/report"
	"github.com/ayusman/camtrack/internal/store"
)

// SessionHandler handles HTTP requests for recorded tracking sessions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sessions, /api/sessions/{id},
	// /api/sessions/{id}/points or /api/sessions/{id}/plot.png
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "points":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.points(w, r, id)
	case "plot.png":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.plot(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID          string         `json:"id"`
	Seed        rectangle      `json:"seed"`
	FrameWidth  int            `json:"frame_width"`
	FrameHeight int            `json:"frame_height"`
	Backend     string         `json:"backend"`
	Params      map[string]int `json:"params"`
	Points      int            `json:"points"`
	CreatedAt   string         `json:"created_at"`
	EndedAt     string         `json:"ended_at,omitempty"`
}

type sessionDetailResponse struct {
	sessionResponse
	Summary report.Summary `json:"summary"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type pointResponse struct {
	Frame  int       `json:"frame"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Width  float64   `json:"width"`
	Height float64   `json:"height"`
	Angle  float64   `json:"angle"`
	Track  rectangle `json:"track"`
}

type listPointsResponse struct {
	SessionID string          `json:"session_id"`
	Points    []pointResponse `json:"points"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// toSessionResponse converts a store.Session to a sessionResponse.
func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:          s.ID,
		Seed:        toRectangle(s.Seed),
		FrameWidth:  s.FrameWidth,
		FrameHeight: s.FrameHeight,
		Backend:     s.Backend,
		Params:      s.Params,
		Points:      s.Points,
		CreatedAt:   s.CreatedAt.Format(timeLayout),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(timeLayout)
	}
	return resp
}

// list handles GET /api/sessions and returns all sessions, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} and returns a session with its motion summary.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	points, err := h.store.Points().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list track points")
		return
	}

	writeJSON(w, http.StatusOK, sessionDetailResponse{
		sessionResponse: toSessionResponse(sess),
		Summary:         report.Summarize(points),
	})
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// points handles GET /api/sessions/{id}/points. The optional "since" query
// parameter skips points up to and including that frame.
func (h *SessionHandler) points(w http.ResponseWriter, r *http.Request, id string) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since parameter")
			return
		}
		since = n
	}

	if _, err := h.store.Sessions().GetByID(id); err != nil {
		writeErr(w, err)
		return
	}
	points, err := h.store.Points().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list track points")
		return
	}

	response := listPointsResponse{
		SessionID: id,
		Points:    make([]pointResponse, 0, len(points)),
	}
	for _, p := range points {
		if p.Frame <= since {
			continue
		}
		response.Points = append(response.Points, pointResponse{
			Frame:  p.Frame,
			X:      p.Rotated.Center.X,
			Y:      p.Rotated.Center.Y,
			Width:  p.Rotated.Size.Width,
			Height: p.Rotated.Size.Height,
			Angle:  p.Rotated.Angle,
			Track:  toRectangle(p.Track),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// plot handles GET /api/sessions/{id}/plot.png and renders the trajectory.
func (h *SessionHandler) plot(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	points, err := h.store.Points().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list track points")
		return
	}

	// Render into a buffer so failures can still be reported as JSON.
	var buf bytes.Buffer
	if err := report.WritePNG(&buf, sess, points, report.DefaultWidth, report.DefaultHeight); err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
