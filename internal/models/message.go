package models

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
)

// Message is a single chat message as returned by the backend. CreatedAt is
// kept as the raw wire string because legacy rows may carry values that do not
// parse; see ParsedCreatedAt.
type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chatId"`
	SenderID    string      `json:"senderId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
	CreatedAt   string      `json:"createdAt"`

	// Set only on the optimistic local copy while the send is in flight.
	ClientID string `json:"-"`
	Pending  bool   `json:"-"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParsedCreatedAt parses CreatedAt with the layouts the backend has emitted
// over time. ok is false when none match.
func (m Message) ParsedCreatedAt() (t time.Time, ok bool) {
	raw := strings.TrimSpace(m.CreatedAt)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// SendMessageRequest is the body of the send-message call.
type SendMessageRequest struct {
	ChatID      string      `json:"chatId"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"messageType"`
}

// MessagePage is one page of chat history, ordered oldest first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	HasMore  bool      `json:"hasMore"`
}

type RenderItemType string

const (
	RenderItemDate    RenderItemType = "date"
	RenderItemMessage RenderItemType = "message"
)

// RenderItem is either a date separator (Label set) or a message (Message set).
type RenderItem struct {
	Type    RenderItemType `json:"type"`
	Key     string         `json:"key"`
	Label   string         `json:"label,omitempty"`
	Message *Message       `json:"message,omitempty"`
}
