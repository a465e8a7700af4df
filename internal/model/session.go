package model

import "time"

type ChatSession struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	DocumentID    string     `gorm:"size:36;not null;index" json:"documentId"`
	Title         string     `gorm:"size:256;not null" json:"title"`
	CreatedAt     time.Time  `gorm:"not null" json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	MessageCount  int        `gorm:"not null;default:0" json:"messageCount"`
	// LastSequence is the highest sequence ever handed out for this session.
	// It never decreases, so sequences are not reused.
	LastSequence int64 `gorm:"not null;default:0" json:"-"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
