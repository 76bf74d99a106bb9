package models

import "time"

// Flashcard box level bounds for the Leitner system.
const (
	// MinBoxLevel is the first Leitner box.
	MinBoxLevel = 1
	// MaxBoxLevel is the last Leitner box.
	MaxBoxLevel = 5
)

// Flashcard represents one card in a user's Leitner box.
type Flashcard struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`     // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`  // Associated user record.
	Front  string `gorm:"type:text;not null"` // Question side.
	Back   string `gorm:"type:text;not null"` // Answer side.

	BoxLevel     int       `gorm:"not null;default:1"` // Leitner box level, 1..5.
	NextReviewAt time.Time `gorm:"not null;index"`     // Next due timestamp.

	SourceUnitID *string `gorm:"type:text;index"` // Lesson unit that generated the card, when automatic.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MistakeLog records a failed recall for analytics.
type MistakeLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID      uint64 `gorm:"not null;index"` // User who missed the card.
	FlashcardID uint64 `gorm:"not null;index"` // Card that was missed.

	LoggedAt time.Time `gorm:"not null;autoCreateTime"` // Event timestamp.
}
