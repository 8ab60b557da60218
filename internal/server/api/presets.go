package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/camtrack/internal/app"
	"github.com/ayusman/camtrack/internal/camshift"
	"github.com/ayusman/camtrack/internal/store"
)

// PresetHandler handles HTTP requests for tracker parameter presets.
type PresetHandler struct {
	app   *app.App
	store *store.Store
}

// NewPresetHandler creates a new PresetHandler. Presets are read from and written to
// the app's store.
func NewPresetHandler(a *app.App) *PresetHandler {
	return &PresetHandler{app: a, store: a.Store()}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *PresetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/presets, /api/presets/{name} or /api/presets/{name}/apply
	path := strings.TrimPrefix(r.URL.Path, "/api/presets")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.save(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	name, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "apply" && r.Method == http.MethodPost:
		h.apply(w, r, name)
	case sub == "apply":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case sub != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, name)
	case r.Method == http.MethodDelete:
		h.delete(w, r, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type savePresetRequest struct {
	Name string `json:"name"`
	// Params defaults to the current tracker parameters when omitted.
	Params map[string]int `json:"params"`
}

type presetResponse struct {
	Name      string         `json:"name"`
	Params    map[string]int `json:"params"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type listPresetsResponse struct {
	Presets []presetResponse `json:"presets"`
}

func toPresetResponse(p *store.Preset) presetResponse {
	resp := presetResponse{Name: p.Name, Params: p.Params}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.Format(timeLayout)
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.Format(timeLayout)
	}
	return resp
}

// list handles GET /api/presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}

	response := listPresetsResponse{
		Presets: make([]presetResponse, 0, len(presets)),
	}
	for _, p := range presets {
		response.Presets = append(response.Presets, toPresetResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/presets/{name}.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request, name string) {
	p, err := h.store.Presets().Get(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPresetResponse(p))
}

// save handles POST /api/presets and stores a preset.
func (h *PresetHandler) save(w http.ResponseWriter, r *http.Request) {
	var req savePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if req.Params == nil {
		p, err := h.app.SavePreset(req.Name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save preset")
			return
		}
		writeJSON(w, http.StatusCreated, toPresetResponse(p))
		return
	}

	// Explicit parameters must be valid tracker settings.
	if _, err := camshift.ParseParameters(req.Params); err != nil {
		writeErr(w, err)
		return
	}
	p := &store.Preset{Name: req.Name, Params: req.Params}
	if err := h.store.Presets().Save(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save preset")
		return
	}
	writeJSON(w, http.StatusCreated, toPresetResponse(p))
}

// apply handles POST /api/presets/{name}/apply.
func (h *PresetHandler) apply(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.app.ApplyPreset(name); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paramsBody(h.app.Parameters()))
}

// delete handles DELETE /api/presets/{name}.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.store.Presets().Delete(name); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
