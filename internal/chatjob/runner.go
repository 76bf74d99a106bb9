package chatjob

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Runner errors.
var (
	// ErrEmptyMessage indicates a blank question.
	ErrEmptyMessage = errors.New("message is required")
	// ErrChatNotFound indicates the chat does not exist or belongs to another user.
	ErrChatNotFound = errors.New("chat not found")
)

// Asker abstracts the upstream chat backend for the runner.
type Asker interface {
	Ask(ctx context.Context, question Question) (*Answer, error)
}

// Runner owns job lifecycles: it accepts questions, drives the worker that
// calls the upstream backend, and persists the conversation.
type Runner struct {
	db         *gorm.DB
	store      Store
	asker      Asker
	maxRuntime time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner constructs a job runner.
func NewRunner(db *gorm.DB, store Store, asker Asker, maxRuntime time.Duration) *Runner {
	if maxRuntime <= 0 {
		maxRuntime = 3 * time.Minute
	}
	return &Runner{
		db:         db,
		store:      store,
		asker:      asker,
		maxRuntime: maxRuntime,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// jobTTL reads the configured result retention.
func jobTTL() time.Duration {
	seconds := settings.IntValue(settings.ChatJobTTLSecondsKey, settings.DefaultChatJobTTLSeconds)
	if seconds <= 0 {
		seconds = settings.DefaultChatJobTTLSeconds
	}
	return time.Duration(seconds) * time.Second
}

// Submit accepts a question, persists the user turn, and starts the worker.
// It returns the job in the submitted state.
func (r *Runner) Submit(ctx context.Context, userID uint64, message, modelID string, chatID uint64, isNewProblem bool) (*Job, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	chat, errChat := r.resolveChat(ctx, userID, chatID)
	if errChat != nil {
		return nil, errChat
	}

	userTurn := models.Message{ChatID: chat.ID, Role: models.RoleUser, Content: message}
	if errCreate := r.db.WithContext(ctx).Create(&userTurn).Error; errCreate != nil {
		return nil, errCreate
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    chat.ID,
		Status:    StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errSave := r.store.Save(ctx, job, jobTTL()); errSave != nil {
		return nil, errSave
	}

	workCtx, cancel := context.WithTimeout(context.Background(), r.maxRuntime)
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	question := Question{
		Message:      message,
		ModelID:      modelID,
		ChatID:       chat.ID,
		IsNewProblem: isNewProblem,
	}
	go r.work(workCtx, *job, question)

	return job, nil
}

// Result returns the job for its owner.
func (r *Runner) Result(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	job, errGet := r.store.Get(ctx, jobID)
	if errGet != nil {
		return nil, errGet
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Cancel aborts a running job. Terminal jobs are left untouched.
func (r *Runner) Cancel(ctx context.Context, userID uint64, jobID string) (*Job, error) {
	job, errGet := r.Result(ctx, userID, jobID)
	if errGet != nil {
		return nil, errGet
	}
	if job.Terminal() {
		return job, ErrJobTerminal
	}

	r.mu.Lock()
	cancel, ok := r.cancels[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}

	job.Status = StatusCancelled
	job.UpdatedAt = time.Now().UTC()
	if errSave := r.store.Save(ctx, job, jobTTL()); errSave != nil {
		return nil, errSave
	}
	return job, nil
}

// resolveChat loads the owner's chat or creates a fresh one.
func (r *Runner) resolveChat(ctx context.Context, userID, chatID uint64) (*models.Chat, error) {
	if chatID != 0 {
		var chat models.Chat
		if errFind := r.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", chatID, userID).
			First(&chat).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, ErrChatNotFound
			}
			return nil, errFind
		}
		return &chat, nil
	}

	chat := models.Chat{UserID: userID}
	if errCreate := r.db.WithContext(ctx).Create(&chat).Error; errCreate != nil {
		return nil, errCreate
	}
	return &chat, nil
}

// work drives one job to a terminal state.
func (r *Runner) work(ctx context.Context, job Job, question Question) {
	defer func() {
		r.mu.Lock()
		delete(r.cancels, job.ID)
		r.mu.Unlock()
	}()

	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if errSave := r.saveIfRunning(&job); errSave != nil {
		log.WithError(errSave).Warn("chatjob: save processing state failed")
	}

	answer, errAsk := r.asker.Ask(ctx, question)
	if errAsk != nil {
		if ctx.Err() == context.Canceled {
			// Cancel already stored the cancelled state.
			return
		}
		job.Status = StatusFailed
		if ctx.Err() == context.DeadlineExceeded {
			job.Error = "answer timed out"
		} else {
			job.Error = "upstream request failed"
		}
		job.UpdatedAt = time.Now().UTC()
		log.WithError(errAsk).Warnf("chatjob: job %s failed", job.ID)
		if errSave := r.saveIfRunning(&job); errSave != nil {
			log.WithError(errSave).Warn("chatjob: save failed state failed")
		}
		return
	}

	r.persistAnswer(&job, question, answer)

	job.Status = StatusCompleted
	job.Answer = answer.Answer
	job.TopicSummary = answer.TopicSummary
	job.Suggestions = answer.Suggestions
	job.UpdatedAt = time.Now().UTC()
	if errSave := r.saveIfRunning(&job); errSave != nil {
		log.WithError(errSave).Warn("chatjob: save completed state failed")
	}
}

// saveIfRunning writes the job state unless cancellation already won.
func (r *Runner) saveIfRunning(job *Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	current, errGet := r.store.Get(ctx, job.ID)
	if errGet == nil && current.Status == StatusCancelled {
		return nil
	}
	return r.store.Save(ctx, job, jobTTL())
}

// persistAnswer writes the assistant turn, chat title, and token metering.
func (r *Runner) persistAnswer(job *Job, question Question, answer *Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var suggestions datatypes.JSON
	if len(answer.Suggestions) > 0 {
		if payload, errMarshal := json.Marshal(answer.Suggestions); errMarshal == nil {
			suggestions = payload
		}
	}
	turn := models.Message{
		ChatID:      job.ChatID,
		Role:        models.RoleAssistant,
		Content:     answer.Answer,
		Suggestions: suggestions,
	}
	if errCreate := r.db.WithContext(ctx).Create(&turn).Error; errCreate != nil {
		log.WithError(errCreate).Warn("chatjob: persist assistant turn failed")
	}

	if strings.TrimSpace(answer.TopicSummary) != "" {
		if errTitle := r.db.WithContext(ctx).Model(&models.Chat{}).
			Where("id = ? AND (title IS NULL OR title = '')", job.ChatID).
			Update("title", answer.TopicSummary).Error; errTitle != nil {
			log.WithError(errTitle).Warn("chatjob: update chat title failed")
		}
	}

	usage := models.TokenUsage{
		UserID:       job.UserID,
		Model:        question.ModelID,
		InputTokens:  answer.Usage.InputTokens,
		OutputTokens: answer.Usage.OutputTokens,
		TotalTokens:  answer.Usage.TotalTokens,
		RequestedAt:  job.CreatedAt,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	if errUsage := r.db.WithContext(ctx).Create(&usage).Error; errUsage != nil {
		log.WithError(errUsage).Warn("chatjob: meter token usage failed")
	}
}
