package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/devisflow/httpx"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/middleware"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/pdf"
	"github.com/diewo77/devisflow/internal/services"
	"github.com/diewo77/devisflow/view"
	"github.com/samber/lo"
)

// Renderer turns a document into PDF bytes.
type Renderer interface {
	Render(doc models.InvoiceData) ([]byte, error)
}

// ExportHandler serves the live preview and the PDF export.
type ExportHandler struct {
	Session  *services.Session
	Renderer Renderer
	Logger   *logger.Logger
}

func NewExportHandler(s *services.Session, r Renderer, log *logger.Logger) *ExportHandler {
	return &ExportHandler{Session: s, Renderer: r, Logger: log}
}

func (h *ExportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /preview", h.Preview)
	mux.HandleFunc("GET /export.pdf", h.PDF)
}

// Preview: GET /preview, ?print=1 opens the print dialog
func (h *ExportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	printMode, _ := strconv.ParseBool(r.URL.Query().Get("print"))
	h.renderPreview(w, r, printMode, "")
}

// PDF: GET /export.pdf
// When rendering fails the printable preview is served instead, flagged
// with the X-Export-Fallback header.
func (h *ExportHandler) PDF(w http.ResponseWriter, r *http.Request) {
	doc := h.Session.Snapshot().Document
	out, err := h.Renderer.Render(doc)
	if err != nil {
		h.Logger.Errorw("pdf export failed, serving print preview", "invoice", doc.InvoiceNumber, "error", err)
		w.Header().Set("X-Export-Fallback", "print")
		h.renderPreview(w, r, true, ierr.Hints(err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.Filename(doc)))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	if _, err := w.Write(out); err != nil {
		h.Logger.Warnw("writing pdf failed", "invoice", doc.InvoiceNumber, "error", err)
	}
}

func (h *ExportHandler) renderPreview(w http.ResponseWriter, r *http.Request, printMode bool, notice string) {
	res := h.Session.Document()
	ctx := view.WithTheme(r.Context(), middleware.ThemeFrom(r, h.Session.Theme()))
	page := view.NewPage(ctx, res.Document, res.Totals)
	page.Print = printMode
	// a pending save failure is shown once, next to the export notice
	page.Notice = strings.Join(lo.Compact([]string{notice, res.Warning}), " · ")

	var buf bytes.Buffer
	if err := view.Render(&buf, page); err != nil {
		h.Logger.Errorw("preview rendering failed", "error", err)
		httpx.Error(w, ierr.WithError(err).
			WithHint("The preview could not be rendered").
			Mark(ierr.ErrExport))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.Logger.Warnw("writing preview failed", "error", err)
	}
}
