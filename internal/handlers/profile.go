package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/services"
)

// ProfileHandler manages the sender profiles.
type ProfileHandler struct {
	Session *services.Session
}

func NewProfileHandler(s *services.Session) *ProfileHandler {
	return &ProfileHandler{Session: s}
}

func (h *ProfileHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/profiles", h.List)
	mux.HandleFunc("POST /api/profiles", h.Create)
	mux.HandleFunc("POST /api/profiles/{id}/activate", h.Activate)
	mux.HandleFunc("DELETE /api/profiles/{id}", h.Delete)
}

// List: GET /api/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"profiles":        h.Session.Profiles(),
		"activeProfileId": h.Session.ActiveProfileID(),
	})
}

// Create: POST /api/profiles, the new profile becomes the sender
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	res, p := h.Session.AddProfile(r.Context())
	httpx.JSON(w, http.StatusCreated, struct {
		services.Result
		Profile models.CompanyDetails `json:"profile"`
	}{res, p})
}

// Activate: POST /api/profiles/{id}/activate
func (h *ProfileHandler) Activate(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.SwitchProfile(r.Context(), r.PathValue("id"))
	writeResult(w, http.StatusOK, res, err)
}

// Delete: DELETE /api/profiles/{id}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.DeleteProfile(r.Context(), r.PathValue("id"))
	writeResult(w, http.StatusOK, res, err)
}
