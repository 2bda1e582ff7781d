package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/services"
)

// PreferenceHandler stores the display theme of the editor.
type PreferenceHandler struct {
	Session *services.Session
}

func NewPreferenceHandler(s *services.Session) *PreferenceHandler {
	return &PreferenceHandler{Session: s}
}

func (h *PreferenceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/preferences/theme", h.Get)
	mux.HandleFunc("PUT /api/preferences/theme", h.Set)
}

// Get: GET /api/preferences/theme
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, services.Preference{Theme: h.Session.Theme()})
}

// Set: PUT /api/preferences/theme {"theme": "dark"}
func (h *PreferenceHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req services.Preference
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	pref, err := h.Session.SetTheme(r.Context(), req.Theme)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pref)
}
