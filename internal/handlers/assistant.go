package handlers

import (
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/services"
)

// AssistantHandler forwards chat and suggestion requests to the session.
type AssistantHandler struct {
	Session *services.Session
	Logger  *logger.Logger
}

func NewAssistantHandler(s *services.Session, log *logger.Logger) *AssistantHandler {
	return &AssistantHandler{Session: s, Logger: log}
}

func (h *AssistantHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/assistant/messages", h.Messages)
	mux.HandleFunc("POST /api/assistant/chat", h.Chat)
	mux.HandleFunc("POST /api/assistant/suggestions", h.Suggest)
}

type chatRequest struct {
	Message string `json:"message"`
}

// Messages: GET /api/assistant/messages
func (h *AssistantHandler) Messages(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.Session.Conversation())
}

// Chat: POST /api/assistant/chat {"message": "..."}
// A failed call still returns the conversation and the unchanged document.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	out, err := h.Session.Chat(r.Context(), req.Message)
	if err != nil {
		if ierr.IsAssistant(err) {
			h.Logger.Warnw("chat failed", "error", err)
		}
		httpx.ErrorWith(w, err, map[string]any{
			"reply":        out.Reply,
			"conversation": out.Conversation,
			"document":     out.Document,
			"totals":       out.Totals,
		})
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Suggest: POST /api/assistant/suggestions
func (h *AssistantHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	res, added, err := h.Session.Suggest(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct {
		services.Result
		Added []models.LineItem `json:"added"`
	}{res, added})
}
