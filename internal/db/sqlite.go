package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tobyh/chatpad/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL,
    content TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);`

// StoreError wraps any failure coming out of the data store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, &StoreError{Op: "migrate", Err: err}
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) CreateConversation(title string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt

	const query = `
        INSERT INTO chats (id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?)`

	if _, err := d.db.Exec(query, conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return nil, &StoreError{Op: "create conversation", Err: err}
	}
	return conv, nil
}

// Conversations returns all conversations, most recent first.
func (d *Database) Conversations() ([]models.Conversation, error) {
	const query = `
        SELECT id, title, created_at, updated_at
        FROM chats
        ORDER BY created_at DESC`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, &StoreError{Op: "list conversations", Err: err}
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, &StoreError{Op: "list conversations", Err: err}
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list conversations", Err: err}
	}
	return conversations, nil
}

// DeleteConversation removes a conversation and all of its messages.
func (d *Database) DeleteConversation(id string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &StoreError{Op: "delete conversation", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages WHERE chat_id = ?", id); err != nil {
		return &StoreError{Op: "delete conversation", Err: err}
	}
	if _, err := tx.Exec("DELETE FROM chats WHERE id = ?", id); err != nil {
		return &StoreError{Op: "delete conversation", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "delete conversation", Err: err}
	}
	return nil
}

// UpdateConversationTitle sets a new title and refreshes the update
// timestamp.
func (d *Database) UpdateConversationTitle(id, title string) error {
	const query = `UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`
	if _, err := d.db.Exec(query, title, time.Now().UTC(), id); err != nil {
		return &StoreError{Op: "update conversation title", Err: err}
	}
	return nil
}

// Messages returns a conversation's messages, oldest first.
func (d *Database) Messages(chatID string) ([]models.Message, error) {
	const query = `
        SELECT id, chat_id, content, role, created_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY created_at ASC`

	rows, err := d.db.Query(query, chatID)
	if err != nil {
		return nil, &StoreError{Op: "list messages", Err: err}
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Content, &msg.Role, &msg.CreatedAt); err != nil {
			return nil, &StoreError{Op: "list messages", Err: err}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list messages", Err: err}
	}
	return messages, nil
}

func (d *Database) CreateMessage(chatID, content, role string) (*models.Message, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Content:   content,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	const query = `
        INSERT INTO messages (id, chat_id, content, role, created_at)
        VALUES (?, ?, ?, ?, ?)`

	if _, err := d.db.Exec(query, msg.ID, msg.ChatID, msg.Content, msg.Role, msg.CreatedAt); err != nil {
		return nil, &StoreError{Op: "create message", Err: err}
	}
	return msg, nil
}
