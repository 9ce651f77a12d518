// Package editorui serves the browser editor page and the math endpoints it
// calls directly: the format selector and one-off renders.
package editorui

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/mathedit/internal/mathrender"
)

// UI holds the process-wide render state the page reads and changes.
type UI struct {
	settings *mathrender.SettingsHolder
	renderer *mathrender.Renderer
}

// New returns a UI over settings. renderer serves POST /api/math/render.
func New(settings *mathrender.SettingsHolder, renderer *mathrender.Renderer) *UI {
	return &UI{settings: settings, renderer: renderer}
}

// RegisterRoutes mounts the page and the math endpoints onto r.
func (u *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", u.ServeIndex)
	r.Get("/api/math/settings", u.handleGetSettings)
	r.Put("/api/math/settings", u.handlePutSettings)
	r.Post("/api/math/render", u.handleRender)
}

func (u *UI) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, u.settings.Get())
}

// handlePutSettings applies a partial update; omitted fields keep their
// current values.
func (u *UI) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutputFormat       *string  `json:"output_format"`
		UseAlternateEngine *bool    `json:"use_alternate_engine"`
		ImageScale         *float64 `json:"image_scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s := u.settings.Get()
	if req.OutputFormat != nil {
		s.OutputFormat = mathrender.Format(*req.OutputFormat)
	}
	if req.UseAlternateEngine != nil {
		s.UseAlternateEngine = *req.UseAlternateEngine
	}
	if req.ImageScale != nil {
		s.ImageScale = *req.ImageScale
	}
	if err := u.settings.Set(s); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (u *UI) handleRender(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latex string `json:"latex"`
		ID    string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latex == "" {
		writeError(w, http.StatusBadRequest, "latex is required")
		return
	}

	s := u.settings.Get()
	var res mathrender.Result
	if req.ID != "" {
		res = u.renderer.RenderWithID(s, req.ID, req.Latex)
	} else {
		res = u.renderer.Render(s, req.Latex)
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
