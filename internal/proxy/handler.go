// Package proxy implements the server-side completion intermediary. It is
// the only component that holds the provider credential: it prepends the
// fixed system instruction to the submitted messages, calls the provider's
// chat-completion endpoint once, and returns the first choice's text.
package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tobyh/chatpad/internal/models"
	"go.uber.org/zap"
)

const systemPrompt = "You are a helpful AI assistant. Provide clear, concise, and helpful responses."

// fallbackContent is returned when the provider produced no usable text.
const fallbackContent = "Sorry, I could not generate a response."

const (
	maxTokens   = 1000
	temperature = 0.7
)

type Handler struct {
	llm    llms.Model
	logger *zap.Logger
}

// New returns a Handler backed by llm. A nil llm means no provider
// credential was configured; requests will be rejected with an error so the
// operator can tell what is missing.
func New(llm llms.Model, logger *zap.Logger) *Handler {
	return &Handler{llm: llm, logger: logger}
}

type completionRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

type completionResponse struct {
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func (h *Handler) ChatCompletion(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if h.llm == nil {
		h.logger.Error("completion requested but no API key is configured")
		h.writeError(w, "OpenAI API key not configured. Please set OPENAI_API_KEY on the proxy.")
		return
	}

	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt))
	for _, msg := range req.Messages {
		content = append(content, llms.TextParts(roleToMessageType(msg.Role), msg.Content))
	}

	resp, err := h.llm.GenerateContent(r.Context(), content,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		h.logger.Error("completion call failed", zap.Error(err))
		h.writeError(w, err.Error())
		return
	}

	text := fallbackContent
	if len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		text = resp.Choices[0].Content
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(completionResponse{Content: text}); err != nil {
		h.logger.Error("failed to encode completion response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

func roleToMessageType(role string) schema.ChatMessageType {
	switch role {
	case models.RoleAssistant:
		return schema.ChatMessageTypeAI
	case models.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}
