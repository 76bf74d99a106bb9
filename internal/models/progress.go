package models

import "time"

// Activity identifiers within a lesson.
const (
	// ActivityReading is the story/reading unit.
	ActivityReading = "reading"
	// ActivityFlashcard is the flashcard unit.
	ActivityFlashcard = "flashcard"
	// ActivityExam is the exam unit.
	ActivityExam = "exam"
	// ActivitySpeedTest is the speed-test unit.
	ActivitySpeedTest = "speed-test"
)

// KnownActivity reports whether an activity identifier is recognized.
func KnownActivity(activityID string) bool {
	switch activityID {
	case ActivityReading, ActivityFlashcard, ActivityExam, ActivitySpeedTest:
		return true
	}
	return false
}

// ActivityProgress stores per-user completion for one lesson activity.
type ActivityProgress struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID     uint64 `gorm:"not null;uniqueIndex:idx_user_lesson_activity"`           // Owning user ID.
	LessonKey  string `gorm:"type:text;not null;uniqueIndex:idx_user_lesson_activity"` // Lesson identifier.
	ActivityID string `gorm:"type:text;not null;uniqueIndex:idx_user_lesson_activity"` // Activity identifier.

	ProgressPercent int `gorm:"not null;default:0"` // Completion percentage, 0..100.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ChapterProgress stores completed step counts for the lesson map.
type ChapterProgress struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_user_chapter"`           // Owning user ID.
	ChapterID string `gorm:"type:text;not null;uniqueIndex:idx_user_chapter"` // Chapter identifier.

	CompletedSteps int `gorm:"not null;default:0"` // Number of fully completed units.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
