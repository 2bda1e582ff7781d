package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/services"
)

// TemplateHandler saves and applies document templates.
type TemplateHandler struct {
	Session *services.Session
}

func NewTemplateHandler(s *services.Session) *TemplateHandler {
	return &TemplateHandler{Session: s}
}

func (h *TemplateHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/templates", h.List)
	mux.HandleFunc("POST /api/templates", h.Create)
	mux.HandleFunc("POST /api/templates/{id}/apply", h.Apply)
	mux.HandleFunc("DELETE /api/templates/{id}", h.Delete)
}

type templateRequest struct {
	Name string `json:"name"`
}

// List: GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Session.Templates())
}

// Create: POST /api/templates {"name": "..."} snapshots the current document
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	tpl, warn, err := h.Session.SaveTemplate(r.Context(), req.Name)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, struct {
		Template models.InvoiceTemplate `json:"template"`
		Warning  string                 `json:"warning,omitempty"`
	}{tpl, warn})
}

// Apply: POST /api/templates/{id}/apply
func (h *TemplateHandler) Apply(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.ApplyTemplate(r.Context(), r.PathValue("id"))
	writeResult(w, http.StatusOK, res, err)
}

// Delete: DELETE /api/templates/{id}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"templates": h.Session.Templates(),
		"warning":   warning(h.Session),
	})
}
