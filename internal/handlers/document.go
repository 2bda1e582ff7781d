package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/services"
)

// DocumentHandler edits the current document.
type DocumentHandler struct {
	Session *services.Session
}

func NewDocumentHandler(s *services.Session) *DocumentHandler {
	return &DocumentHandler{Session: s}
}

func (h *DocumentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/themes", h.Themes)
	mux.HandleFunc("GET /api/document", h.Get)
	mux.HandleFunc("PUT /api/document", h.Update)
	mux.HandleFunc("POST /api/document/reset", h.Reset)
	mux.HandleFunc("PUT /api/document/sender", h.UpdateSender)
	mux.HandleFunc("PUT /api/document/receiver", h.UpdateReceiver)
	mux.HandleFunc("POST /api/document/items", h.AddItem)
	mux.HandleFunc("PUT /api/document/items/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/document/items/{id}", h.RemoveItem)
}

// Themes: GET /api/themes
func (h *DocumentHandler) Themes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, models.Themes())
}

// Get: GET /api/document
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Session.Document())
}

// Update: PUT /api/document, body is a partial document
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res, report, err := h.Session.UpdateDocument(r.Context(), body)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct {
		services.Result
		Report models.MergeReport `json:"report"`
	}{res, report})
}

// Reset: POST /api/document/reset
func (h *DocumentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Session.Reset(r.Context()))
}

// UpdateSender: PUT /api/document/sender
func (h *DocumentHandler) UpdateSender(w http.ResponseWriter, r *http.Request) {
	var patch models.CompanyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, err)
		return
	}
	res, err := h.Session.UpdateSender(r.Context(), patch)
	writeResult(w, http.StatusOK, res, err)
}

// UpdateReceiver: PUT /api/document/receiver
func (h *DocumentHandler) UpdateReceiver(w http.ResponseWriter, r *http.Request) {
	var patch models.CompanyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, err)
		return
	}
	res, err := h.Session.UpdateReceiver(r.Context(), patch)
	writeResult(w, http.StatusOK, res, err)
}

// AddItem: POST /api/document/items
func (h *DocumentHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var draft models.ItemPatch
	if err := decodeJSON(w, r, &draft); err != nil {
		httpx.Error(w, err)
		return
	}
	res, item, err := h.Session.AddItem(r.Context(), draft)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, itemResponse{Result: res, Item: item})
}

// UpdateItem: PUT /api/document/items/{id}
func (h *DocumentHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch models.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.Error(w, err)
		return
	}
	res, err := h.Session.UpdateItem(r.Context(), r.PathValue("id"), patch)
	writeResult(w, http.StatusOK, res, err)
}

// RemoveItem: DELETE /api/document/items/{id}
func (h *DocumentHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	res, err := h.Session.RemoveItem(r.Context(), r.PathValue("id"))
	writeResult(w, http.StatusOK, res, err)
}
