// Package api is the HTTP presentation boundary. Handlers dispatch user
// intents (list, create, select, delete, send) to the chat controller and
// render its state as JSON; they hold no state of their own.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tobyh/chatpad/internal/chat"
	"github.com/tobyh/chatpad/internal/completion"
	"go.uber.org/zap"
)

type Handler struct {
	ctrl   *chat.Controller
	logger *zap.Logger
}

func NewHandler(ctrl *chat.Controller, logger *zap.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logger}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleMessage accepts a user message for the active conversation and
// responds with the updated message list. While a completion is pending it
// rejects further sends with 409.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.ctrl.SendMessage(r.Context(), req.Content)
	var cerr *completion.Error
	switch {
	case errors.Is(err, chat.ErrBusy):
		http.Error(w, "A request is already in progress", http.StatusConflict)
		return
	case errors.As(err, &cerr):
		// The failure is already folded into the history as an assistant
		// message; return the messages so the client can render it.
	case err != nil:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.ctrl.Messages())
}

// Conversations lists conversations on GET and creates one on POST.
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if err := h.ctrl.LoadConversations(); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, h.ctrl.Conversations())

	case http.MethodPost:
		conv, err := h.ctrl.CreateConversation()
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, conv)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SelectConversation makes the given conversation active and returns its
// messages. An empty id clears the selection.
func (h *Handler) SelectConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.ctrl.SelectConversation(r.URL.Query().Get("id")); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.ctrl.Messages())
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing conversation id", http.StatusBadRequest)
		return
	}

	if err := h.ctrl.DeleteConversation(id); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, struct {
		ActiveID string `json:"active_id"`
	}{ActiveID: h.ctrl.ActiveID()})
}

// GetMessages returns the active conversation's messages, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, h.ctrl.Messages())
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
