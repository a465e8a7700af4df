package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Source struct {
	ChunkID  string `json:"chunkId"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

type Message struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	SessionID string `gorm:"size:36;not null;uniqueIndex:idx_messages_session_sequence,priority:1" json:"sessionId"`
	Sequence  int64  `gorm:"not null;uniqueIndex:idx_messages_session_sequence,priority:2" json:"sequence"`
	Role      string `gorm:"size:16;not null" json:"role"`
	Text      string `gorm:"type:text;not null" json:"text"`
	// ReplyToID links an assistant message to the user message it answers.
	ReplyToID *string                     `gorm:"size:36;uniqueIndex" json:"replyToId,omitempty"`
	Sources   datatypes.JSONSlice[Source] `gorm:"not null" json:"sources"`
	CreatedAt time.Time                   `gorm:"not null" json:"createdAt"`
}
