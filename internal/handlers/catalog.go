package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/services"
)

// CatalogHandler manages reusable items.
type CatalogHandler struct {
	Session *services.Session
}

func NewCatalogHandler(s *services.Session) *CatalogHandler {
	return &CatalogHandler{Session: s}
}

func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.List)
	mux.HandleFunc("POST /api/catalog", h.Create)
	mux.HandleFunc("PUT /api/catalog/{id}", h.Update)
	mux.HandleFunc("DELETE /api/catalog/{id}", h.Delete)
	mux.HandleFunc("POST /api/catalog/{id}/insert", h.Insert)
}

type catalogResponse struct {
	Item    models.CatalogItem `json:"item"`
	Warning string             `json:"warning,omitempty"`
}

// List: GET /api/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Session.Catalog())
}

// Create: POST /api/catalog
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var patch models.CatalogPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, err)
		return
	}
	item, err := h.Session.AddCatalogItem(r.Context(), patch)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, catalogResponse{Item: item, Warning: warning(h.Session)})
}

// Update: PUT /api/catalog/{id}
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.CatalogPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, err)
		return
	}
	item, err := h.Session.UpdateCatalogItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, catalogResponse{Item: item, Warning: warning(h.Session)})
}

// Delete: DELETE /api/catalog/{id}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.DeleteCatalogItem(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"catalog": h.Session.Catalog(),
		"warning": warning(h.Session),
	})
}

// Insert: POST /api/catalog/{id}/insert adds the entry to the document
func (h *CatalogHandler) Insert(w http.ResponseWriter, r *http.Request) {
	res, item, err := h.Session.InsertCatalogItem(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, itemResponse{Result: res, Item: item})
}
