// Package domain defines the core domain models for the chat service.
package domain

import "time"

// Message sender values as stored in transcript records.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Session represents a conversation context. The title stays empty
// until the session's first append, after which it is frozen.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single message in a session transcript. Immutable once
// persisted.
type Message struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"` // user or ai
	Content string `json:"content"`
}
