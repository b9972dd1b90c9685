package assistant

import (
	"encoding/json"
	"errors"
	"net/http"

	"financial_extractor/pkg/api/respond"
	"financial_extractor/pkg/core/query"
	"financial_extractor/pkg/core/session"
	"financial_extractor/pkg/models"
)

// Handler provides HTTP handlers for the data assistant chat
type Handler struct {
	ctrl *session.Controller
}

// NewHandler creates a new assistant handler
func NewHandler(ctrl *session.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// ChatRequest is one user question. Mode is "qa" (default) or "template".
type ChatRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode,omitempty"`
}

// ChatResponse carries the assistant message. Failed calls still return the
// error message that was appended to the log, alongside a non-2xx status.
type ChatResponse struct {
	Message models.ChatMessage `json:"message"`
	Error   *respond.ErrorBody `json:"error,omitempty"`
}

// HistoryResponse is the chat log in append order.
type HistoryResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

// HandleChat asks one question against the loaded sources
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "Invalid request body")
		return
	}

	msg, err := h.ctrl.Ask(r.Context(), req.Question, query.ParseMode(req.Mode))
	if err != nil {
		if msg.ID == "" || errors.Is(err, session.ErrStaleAnswer) {
			respond.Error(w, err)
			return
		}
		status, body := respond.Classify(err)
		respond.JSON(w, status, ChatResponse{Message: msg, Error: &body})
		return
	}
	respond.JSON(w, http.StatusOK, ChatResponse{Message: msg})
}

// HandleHistory returns the chat log
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	msgs := h.ctrl.ChatLog()
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	respond.JSON(w, http.StatusOK, HistoryResponse{Messages: msgs})
}

// HandleClear empties the chat log
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ClearChat()
	w.WriteHeader(http.StatusNoContent)
}
