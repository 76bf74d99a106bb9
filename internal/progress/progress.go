// Package progress tracks per-activity lesson completion and derives the
// locked/unlocked state of exam and speed-test units from it.
package progress

import (
	"context"
	"errors"
	"math"

	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownActivity indicates an activity id outside the lesson vocabulary.
var ErrUnknownActivity = errors.New("unknown activity id")

// Service persists activity and chapter progress rows.
type Service struct {
	db *gorm.DB
}

// NewService constructs a progress service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Percent computes the rounded completion percentage for an answer count.
func Percent(answered, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(answered) / float64(total) * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// UpsertProgress writes the completion percentage for one lesson activity.
// Last write wins; the client recomputes percent from its authoritative
// answered count on every call, so no merge is needed.
func (s *Service) UpsertProgress(ctx context.Context, userID uint64, lessonKey, activityID string, percent int) error {
	if !models.KnownActivity(activityID) {
		return ErrUnknownActivity
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	row := models.ActivityProgress{
		UserID:          userID,
		LessonKey:       lessonKey,
		ActivityID:      activityID,
		ProgressPercent: percent,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_key"}, {Name: "activity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"progress_percent", "updated_at"}),
		}).
		Create(&row).Error
}

// LessonProgress returns percent per requested activity, defaulting missing rows to 0.
func (s *Service) LessonProgress(ctx context.Context, userID uint64, lessonKey string, activityIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(activityIDs))
	for _, id := range activityIDs {
		out[id] = 0
	}

	var rows []models.ActivityProgress
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND lesson_key = ?", userID, lessonKey).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	for _, row := range rows {
		if _, wanted := out[row.ActivityID]; wanted {
			out[row.ActivityID] = row.ProgressPercent
		}
	}
	return out, nil
}

// CompleteChapterStep records completed steps for the lesson-map view.
// Written only at full-unit completion.
func (s *Service) CompleteChapterStep(ctx context.Context, userID uint64, chapterID string, completedSteps int) error {
	if completedSteps < 0 {
		completedSteps = 0
	}
	row := models.ChapterProgress{
		UserID:         userID,
		ChapterID:      chapterID,
		CompletedSteps: completedSteps,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "chapter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed_steps", "updated_at"}),
		}).
		Create(&row).Error
}

// ChapterProgress returns the completed step counts for all chapters of a user.
func (s *Service) ChapterProgress(ctx context.Context, userID uint64) ([]models.ChapterProgress, error) {
	var rows []models.ChapterProgress
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("chapter_id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}

// ActivityState is the derived lock state of one lesson activity.
type ActivityState struct {
	ActivityID string `json:"activity_id"`
	Percent    int    `json:"percent"`
	Locked     bool   `json:"locked"`
}

// UnlockThreshold returns the configured prerequisite percentage.
func UnlockThreshold() int {
	return settings.IntValue(settings.UnlockThresholdKey, settings.DefaultUnlockThreshold)
}

// LessonStates derives lock states for a lesson. Reading and flashcard are
// always unlocked; exam and speed-test unlock once both prerequisites reach
// the threshold. Activities missing a progress row count as 0, so lessons
// without a reading or flashcard unit keep their exam locked.
func (s *Service) LessonStates(ctx context.Context, userID uint64, lessonKey string) ([]ActivityState, error) {
	percents, errProgress := s.LessonProgress(ctx, userID, lessonKey, []string{
		models.ActivityReading,
		models.ActivityFlashcard,
		models.ActivityExam,
		models.ActivitySpeedTest,
	})
	if errProgress != nil {
		return nil, errProgress
	}

	threshold := UnlockThreshold()
	prereqMet := percents[models.ActivityReading] >= threshold &&
		percents[models.ActivityFlashcard] >= threshold

	states := []ActivityState{
		{ActivityID: models.ActivityReading, Percent: percents[models.ActivityReading]},
		{ActivityID: models.ActivityFlashcard, Percent: percents[models.ActivityFlashcard]},
		{ActivityID: models.ActivityExam, Percent: percents[models.ActivityExam], Locked: !prereqMet},
		{ActivityID: models.ActivitySpeedTest, Percent: percents[models.ActivitySpeedTest], Locked: !prereqMet},
	}
	return states, nil
}
