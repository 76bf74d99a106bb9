// Package leitner implements the spaced-repetition box scheduling used by
// the flashcard review flow. A card moves up one box on a successful recall
// and falls back to the first box on a miss; the box index selects the next
// review interval.
package leitner

import (
	"time"

	"github.com/porsino-app/porsino-server/internal/models"
)

// intervalDays maps box level (1-based) to the review interval in days.
var intervalDays = [...]int{1, 3, 7, 15, 30}

// fallbackIntervalDays is used when the new level has no table entry.
const fallbackIntervalDays = 30

// Schedule computes the next box level and review time for a recall outcome.
// currentLevel is expected to be within [1,5]; out-of-range input is the
// caller's responsibility.
func Schedule(currentLevel int, knewAnswer bool, now time.Time) (int, time.Time) {
	if !knewAnswer {
		return models.MinBoxLevel, now.AddDate(0, 0, 1)
	}

	newLevel := currentLevel + 1
	if newLevel > models.MaxBoxLevel {
		newLevel = models.MaxBoxLevel
	}

	days := fallbackIntervalDays
	if idx := newLevel - 1; idx >= 0 && idx < len(intervalDays) {
		days = intervalDays[idx]
	}
	return newLevel, now.AddDate(0, 0, days)
}
