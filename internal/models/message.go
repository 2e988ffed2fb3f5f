package models

import "time"

// MessageType distinguishes member chatter from system notices (payout
// announcements, member joins).
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageSystem MessageType = "SYSTEM"
)

type GroupMessage struct {
	ID         string      `json:"id" db:"id"`
	GroupID    string      `json:"groupId" db:"group_id"`
	SenderID   string      `json:"senderId" db:"sender_id"`
	SenderName string      `json:"senderName" db:"sender_name"`
	Text       string      `json:"text" db:"text"`
	Type       MessageType `json:"type" db:"type"`
	CreatedAt  time.Time   `json:"timestamp" db:"created_at"`
}
