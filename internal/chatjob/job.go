// Package chatjob runs AI tutoring questions as asynchronous jobs. A
// submitted question is answered by a background worker calling the upstream
// chat backend; clients observe the job through its identifier until it
// reaches a terminal state. Jobs are bounded by a hard runtime limit and
// expire from the store after a TTL.
package chatjob

import (
	"errors"
	"time"
)

// Job statuses. submitted → processing → completed | failed | cancelled.
const (
	// StatusSubmitted marks a job accepted but not yet picked up.
	StatusSubmitted = "submitted"
	// StatusProcessing marks a job whose upstream request is in flight.
	StatusProcessing = "processing"
	// StatusCompleted marks a job with a stored answer.
	StatusCompleted = "completed"
	// StatusFailed marks a job whose upstream request failed or timed out.
	StatusFailed = "failed"
	// StatusCancelled marks a job aborted by the user.
	StatusCancelled = "cancelled"
)

// Job errors.
var (
	// ErrJobNotFound indicates an unknown or expired job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal indicates a transition out of a terminal state.
	ErrJobTerminal = errors.New("job already in a terminal state")
)

// Job is the observable state of one tutoring question.
type Job struct {
	ID     string `json:"id"`
	UserID uint64 `json:"user_id"`
	ChatID uint64 `json:"chat_id"`

	Status string `json:"status"`

	Answer       string   `json:"answer,omitempty"`
	TopicSummary string   `json:"topic_summary,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Error        string   `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
