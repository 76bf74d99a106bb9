package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message roles within a chat.
const (
	// RoleUser marks a learner message.
	RoleUser = "user"
	// RoleAssistant marks a tutor answer.
	RoleAssistant = "assistant"
)

// Chat groups a tutoring conversation for one user.
type Chat struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Associated user record.

	Title string `gorm:"type:text"` // Topic summary from the first answer.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Message is one turn of a tutoring conversation.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatID uint64 `gorm:"not null;index"`    // Parent chat ID.
	Chat   *Chat  `gorm:"foreignKey:ChatID"` // Associated chat record.

	Role    string `gorm:"type:text;not null"` // user | assistant.
	Content string `gorm:"type:text;not null"` // Message body.

	Suggestions datatypes.JSON `gorm:"type:jsonb"` // Follow-up suggestions on assistant turns.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TokenUsage meters one AI backend request.
type TokenUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`           // Requesting user ID.
	Model  string `gorm:"type:text;not null;index"` // Model identifier.

	InputTokens  int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Output token count.
	TotalTokens  int64 `gorm:"not null;default:0"` // Total token count.

	RequestedAt time.Time `gorm:"not null;index"` // Request timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
