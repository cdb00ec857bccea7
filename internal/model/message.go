package model

import "time"

// Judge values a message may carry. Messages are append-only: no update
// or delete path exists anywhere in the codebase.
const (
	JudgeUser = "user"
	JudgeAI   = "ai"
)

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	Judge     string    `gorm:"size:16;not null" json:"judge"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
