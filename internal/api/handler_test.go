package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobyh/chatpad/internal/chat"
	"github.com/tobyh/chatpad/internal/completion"
	"github.com/tobyh/chatpad/internal/models"
	"go.uber.org/zap"
)

// memStore is a minimal in-memory chat.Store for handler tests.
type memStore struct {
	mu            sync.Mutex
	conversations []models.Conversation
	messages      map[string][]models.Message
	seq           int
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[string][]models.Message)}
}

func (s *memStore) CreateConversation(title string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	conv := models.Conversation{
		ID:        fmt.Sprintf("conv-%d", s.seq),
		Title:     title,
		CreatedAt: time.Now().Add(time.Duration(s.seq) * time.Millisecond),
	}
	conv.UpdatedAt = conv.CreatedAt
	s.conversations = append([]models.Conversation{conv}, s.conversations...)
	return &conv, nil
}

func (s *memStore) Conversations() ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Conversation(nil), s.conversations...), nil
}

func (s *memStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.conversations[:0]
	for _, conv := range s.conversations {
		if conv.ID != id {
			remaining = append(remaining, conv)
		}
	}
	s.conversations = remaining
	delete(s.messages, id)
	return nil
}

func (s *memStore) UpdateConversationTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Title = title
		}
	}
	return nil
}

func (s *memStore) Messages(chatID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages[chatID]...), nil
}

func (s *memStore) CreateMessage(chatID, content, role string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	msg := models.Message{
		ID:        fmt.Sprintf("msg-%d", s.seq),
		ChatID:    chatID,
		Content:   content,
		Role:      role,
		CreatedAt: time.Now().Add(time.Duration(s.seq) * time.Millisecond),
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	return &msg, nil
}

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	return s.reply, s.err
}

func newTestServer(t *testing.T, completer chat.Completer) (*httptest.Server, *chat.Controller) {
	t.Helper()
	ctrl := chat.NewController(newMemStore(), completer, nil, zap.NewNop())
	handler := NewHandler(ctrl, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/message", handler.HandleMessage)
	mux.HandleFunc("/api/conversations", handler.Conversations)
	mux.HandleFunc("/api/conversations/select", handler.SelectConversation)
	mux.HandleFunc("/api/conversations/delete", handler.DeleteConversation)
	mux.HandleFunc("/api/messages", handler.GetMessages)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ctrl
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, &stubCompleter{reply: "Hi there"})

	// Create a conversation.
	resp := postJSON(t, srv.URL+"/api/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var conv models.Conversation
	decodeInto(t, resp, &conv)
	assert.Equal(t, "Chat 1", conv.Title)

	// Send a message; the response carries the updated thread.
	resp = postJSON(t, srv.URL+"/api/message", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []models.Message
	decodeInto(t, resp, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, "Hi there", msgs[1].Content)

	// The title was derived from the first message.
	listResp, err := http.Get(srv.URL + "/api/conversations")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var convs []models.Conversation
	decodeInto(t, listResp, &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, "Hello", convs[0].Title)

	// Delete it; nothing remains active.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/conversations/delete?id="+conv.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)
	var state struct {
		ActiveID string `json:"active_id"`
	}
	decodeInto(t, delResp, &state)
	assert.Empty(t, state.ActiveID)
}

func TestHandleMessage_CompletionFailureStillReturnsThread(t *testing.T) {
	srv, _ := newTestServer(t, &stubCompleter{
		err: &completion.Error{Kind: completion.KindQuota, Detail: "insufficient_quota"},
	})

	resp := postJSON(t, srv.URL+"/api/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/message", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []models.Message
	decodeInto(t, resp, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Error: ")
	assert.Contains(t, msgs[1].Content, "quota")
}

func TestHandleMessage_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	resp, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/message")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}

func TestSelectConversationOverHTTP(t *testing.T) {
	srv, ctrl := newTestServer(t, &stubCompleter{reply: "ok"})

	resp := postJSON(t, srv.URL+"/api/conversations", nil)
	var first models.Conversation
	decodeInto(t, resp, &first)
	resp = postJSON(t, srv.URL+"/api/message", map[string]string{"content": "in first"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/conversations", nil)
	var second models.Conversation
	decodeInto(t, resp, &second)
	require.Equal(t, second.ID, ctrl.ActiveID())

	resp = postJSON(t, srv.URL+"/api/conversations/select?id="+first.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []models.Message
	decodeInto(t, resp, &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "in first", msgs[0].Content)
	assert.Equal(t, first.ID, ctrl.ActiveID())
}

func TestDeleteConversation_RequiresID(t *testing.T) {
	srv, _ := newTestServer(t, &stubCompleter{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/conversations/delete", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
