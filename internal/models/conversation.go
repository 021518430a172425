package models

import "time"

// Message roles. System is only ever prepended by the completion proxy and
// is never stored.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the reduced {role, content} shape sent to the completion
// proxy.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
