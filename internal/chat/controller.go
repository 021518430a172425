// Package chat owns the conversation state: the conversation list, the
// active conversation, its messages, and the pending-request flag. It
// orchestrates the persistence store and the completion gateway; the HTTP
// layer only dispatches intents to it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tobyh/chatpad/internal/completion"
	"github.com/tobyh/chatpad/internal/models"
	"go.uber.org/zap"
)

// ErrBusy is returned by SendMessage while a completion request is already
// in flight. The input surface must treat this as a rejection, not queue it.
var ErrBusy = errors.New("a completion request is already in flight")

// maxTitleLen is the number of leading characters of the first user message
// used as the conversation title.
const maxTitleLen = 30

// Store is the persistence gateway the controller writes through.
type Store interface {
	CreateConversation(title string) (*models.Conversation, error)
	Conversations() ([]models.Conversation, error)
	DeleteConversation(id string) error
	UpdateConversationTitle(id, title string) error
	Messages(chatID string) ([]models.Message, error)
	CreateMessage(chatID, content, role string) (*models.Message, error)
}

// Completer produces an assistant reply for an ordered message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

type Controller struct {
	store     Store
	completer Completer
	notifier  Notifier
	logger    *zap.Logger

	mu            sync.Mutex
	conversations []models.Conversation
	activeID      string
	messages      []models.Message
	pending       bool
}

func NewController(store Store, completer Completer, notifier Notifier, logger *zap.Logger) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Controller{
		store:     store,
		completer: completer,
		notifier:  notifier,
		logger:    logger,
	}
}

// LoadConversations refreshes the conversation list from the store. When
// nothing is active yet, the most recent conversation becomes active. On
// failure the in-memory state is left untouched.
func (c *Controller) LoadConversations() error {
	convs, err := c.store.Conversations()
	if err != nil {
		c.logger.Error("failed to load conversations", zap.Error(err))
		c.notifier.Error("Failed to load chats")
		return err
	}

	c.mu.Lock()
	c.conversations = convs
	first := ""
	if c.activeID == "" && len(convs) > 0 {
		first = convs[0].ID
	}
	c.mu.Unlock()

	if first != "" {
		return c.SelectConversation(first)
	}
	return nil
}

// SelectConversation makes id the active conversation and replaces the
// message list with its history. An empty id clears the selection.
func (c *Controller) SelectConversation(id string) error {
	if id == "" {
		c.mu.Lock()
		c.activeID = ""
		c.messages = nil
		c.mu.Unlock()
		return nil
	}

	msgs, err := c.store.Messages(id)
	if err != nil {
		c.logger.Error("failed to load messages", zap.Error(err), zap.String("chatID", id))
		c.notifier.Error("Failed to load messages")
		return err
	}

	c.mu.Lock()
	c.activeID = id
	c.messages = msgs
	c.mu.Unlock()
	return nil
}

// CreateConversation creates a conversation with an auto-generated title and
// makes it active with an empty message list.
func (c *Controller) CreateConversation() (*models.Conversation, error) {
	c.mu.Lock()
	title := fmt.Sprintf("Chat %d", len(c.conversations)+1)
	c.mu.Unlock()

	conv, err := c.store.CreateConversation(title)
	if err != nil {
		c.logger.Error("failed to create conversation", zap.Error(err))
		c.notifier.Error("Failed to create new chat")
		return nil, err
	}

	c.mu.Lock()
	convs := make([]models.Conversation, 0, len(c.conversations)+1)
	convs = append(convs, *conv)
	convs = append(convs, c.conversations...)
	c.conversations = convs
	c.activeID = conv.ID
	c.messages = nil
	c.mu.Unlock()
	return conv, nil
}

// DeleteConversation removes the conversation and its messages. If it was
// active, the first remaining conversation (in list order) becomes active,
// or none if the list is now empty.
func (c *Controller) DeleteConversation(id string) error {
	if err := c.store.DeleteConversation(id); err != nil {
		c.logger.Error("failed to delete conversation", zap.Error(err), zap.String("chatID", id))
		c.notifier.Error("Failed to delete chat")
		return err
	}

	c.mu.Lock()
	remaining := make([]models.Conversation, 0, len(c.conversations))
	for _, conv := range c.conversations {
		if conv.ID != id {
			remaining = append(remaining, conv)
		}
	}
	c.conversations = remaining
	next := ""
	if c.activeID == id {
		c.activeID = ""
		c.messages = nil
		if len(remaining) > 0 {
			next = remaining[0].ID
		}
	}
	c.mu.Unlock()

	if next != "" {
		// A load failure here is already reported; the deletion itself
		// succeeded.
		_ = c.SelectConversation(next)
	}
	c.notifier.Success("Chat deleted successfully")
	return nil
}

// SendMessage persists the user's text, derives the title on the first
// message, requests a completion, and persists the reply. A failing
// completion is folded into the history as an assistant message so it stays
// visible. While a request is in flight further sends return ErrBusy.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.activeID == "" {
		c.mu.Unlock()
		return nil
	}
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.pending = true
	convID := c.activeID
	history := append([]models.Message(nil), c.messages...)
	firstMessage := len(c.messages) == 0
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	userMsg, err := c.store.CreateMessage(convID, text, models.RoleUser)
	if err != nil {
		c.logger.Error("failed to save user message", zap.Error(err))
		c.notifier.Error("Failed to send message. Please try again.")
		return err
	}
	c.appendMessage(convID, *userMsg)

	if firstMessage {
		c.applyTitle(convID, deriveTitle(text))
	}

	payload := make([]models.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		payload = append(payload, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	payload = append(payload, models.ChatMessage{Role: userMsg.Role, Content: userMsg.Content})

	reply, err := c.completer.Complete(ctx, payload)
	if err != nil {
		c.recordFailure(convID, err)
		return err
	}

	replyMsg, err := c.store.CreateMessage(convID, reply, models.RoleAssistant)
	if err != nil {
		c.logger.Error("failed to save assistant message", zap.Error(err))
		c.notifier.Error("Failed to save the assistant's reply.")
		return err
	}
	c.appendMessage(convID, *replyMsg)
	c.notifier.Success("Message sent successfully!")
	return nil
}

// Conversations returns a snapshot of the conversation list, most recent
// first.
func (c *Controller) Conversations() []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Conversation(nil), c.conversations...)
}

// Messages returns a snapshot of the active conversation's messages, oldest
// first.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// appendMessage folds a persisted message into the visible list, unless the
// user has switched away in the meantime.
func (c *Controller) appendMessage(convID string, msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID != convID {
		return
	}
	msgs := make([]models.Message, 0, len(c.messages)+1)
	msgs = append(msgs, c.messages...)
	c.messages = append(msgs, msg)
}

// applyTitle persists the derived title and reflects it in the list. A
// failure leaves the default title in place; the send continues.
func (c *Controller) applyTitle(convID, title string) {
	if err := c.store.UpdateConversationTitle(convID, title); err != nil {
		c.logger.Error("failed to update conversation title", zap.Error(err), zap.String("chatID", convID))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	convs := make([]models.Conversation, len(c.conversations))
	for i, conv := range c.conversations {
		if conv.ID == convID {
			conv.Title = title
		}
		convs[i] = conv
	}
	c.conversations = convs
}

// recordFailure turns a completion error into a user notification and a
// synthetic assistant message so the failure stays visible in the history.
func (c *Controller) recordFailure(convID string, cause error) {
	msg := userFacingError(cause)
	c.logger.Error("completion failed", zap.Error(cause), zap.String("chatID", convID))
	c.notifier.Error(msg)

	errMsg, err := c.store.CreateMessage(convID, "Error: "+msg, models.RoleAssistant)
	if err != nil {
		// Logged only: reporting this through the error path again could
		// loop forever.
		c.logger.Error("failed to save error message", zap.Error(err))
		return
	}
	c.appendMessage(convID, *errMsg)
}

func userFacingError(err error) string {
	var cerr *completion.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case completion.KindNotConfigured:
			return "The AI service is not configured. Please add an OpenAI API key to the completion proxy."
		case completion.KindQuota:
			return "OpenAI API quota exceeded. Please check your API usage."
		}
	}
	return "Failed to send message. Please try again."
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen]) + "..."
	}
	return text
}
