package models

import (
	"time"
)

// Message is one chat message between two users. It is immutable once stored;
// the realtime layer forwards it as-is.
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	SenderID   string    `json:"senderId" gorm:"column:sender_id;not null;index:idx_messages_pair,priority:1"`
	ReceiverID string    `json:"receiverId" gorm:"column:receiver_id;not null;index:idx_messages_pair,priority:2"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index"`
}

// TableName specifies the table name for Message Model
func (Message) TableName() string {
	return "messages"
}

// PartnerOf returns the other party of the conversation from self's point of view.
func (m Message) PartnerOf(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}
