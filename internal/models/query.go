package models

import "time"

// QueryLog is an audit entry recording a user question. It is append-only.
type QueryLog struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	DataSourceID *string   `json:"dataSourceId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (q *QueryLog) RecordID() string { return q.ID }

func (q *QueryLog) Init(id string, now time.Time) {
	q.ID = id
	q.CreatedAt = now
}

// Touch is a no-op: query logs are never updated.
func (q *QueryLog) Touch(time.Time) {}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}
