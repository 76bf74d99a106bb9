package chatjob

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/porsino-app/porsino-server/internal/models"
	"gorm.io/gorm"
)

// stubAsker answers from a fixed response, optionally blocking until the
// request context ends.
type stubAsker struct {
	answer *Answer
	err    error
	block  bool
}

func (a *stubAsker) Ask(ctx context.Context, _ Question) (*Answer, error) {
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.answer, nil
}

func setupChatJobDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:chatjob_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.Chat{}, &models.Message{}, &models.TokenUsage{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func waitForTerminal(t *testing.T, runner *Runner, userID uint64, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, errGet := runner.Result(context.Background(), userID, jobID)
		if errGet != nil {
			t.Fatalf("result: %v", errGet)
		}
		if job.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return nil
}

func TestSubmitCreatesChatAndUserMessage(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{answer: &Answer{Answer: "ok"}}
	runner := NewRunner(db, NewMemoryStore(), asker, time.Minute)

	job, errSubmit := runner.Submit(context.Background(), 1, "why do leaves turn yellow?", "tutor-v2", 0, true)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	if job.ChatID == 0 {
		t.Fatalf("expected a chat id on the job")
	}

	var turns []models.Message
	if errFind := db.Where("chat_id = ?", job.ChatID).Find(&turns).Error; errFind != nil {
		t.Fatalf("find messages: %v", errFind)
	}
	if len(turns) == 0 || turns[0].Role != models.RoleUser {
		t.Fatalf("user turn not persisted: %+v", turns)
	}
	waitForTerminal(t, runner, 1, job.ID)
}

func TestJobCompletesAndPersistsAnswer(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{answer: &Answer{
		Answer:       "Chlorophyll breaks down in autumn.",
		TopicSummary: "Leaf color change",
		Suggestions:  []string{"What is chlorophyll?", "Why autumn?"},
		Usage:        Usage{InputTokens: 20, OutputTokens: 80},
	}}
	runner := NewRunner(db, NewMemoryStore(), asker, time.Minute)

	job, errSubmit := runner.Submit(context.Background(), 1, "why do leaves change color?", "tutor-v2", 0, true)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	done := waitForTerminal(t, runner, 1, job.ID)
	if done.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed (error=%s)", done.Status, done.Error)
	}
	if done.Answer == "" || done.TopicSummary != "Leaf color change" || len(done.Suggestions) != 2 {
		t.Fatalf("result payload incomplete: %+v", done)
	}

	var assistant models.Message
	if errFind := db.Where("chat_id = ? AND role = ?", done.ChatID, models.RoleAssistant).
		First(&assistant).Error; errFind != nil {
		t.Fatalf("assistant turn not persisted: %v", errFind)
	}

	var chat models.Chat
	if errFind := db.First(&chat, done.ChatID).Error; errFind != nil {
		t.Fatalf("find chat: %v", errFind)
	}
	if chat.Title != "Leaf color change" {
		t.Fatalf("chat title = %q", chat.Title)
	}

	var usage models.TokenUsage
	if errFind := db.Where("user_id = ?", 1).First(&usage).Error; errFind != nil {
		t.Fatalf("token usage not metered: %v", errFind)
	}
	if usage.TotalTokens != 100 {
		t.Fatalf("total tokens = %d, want 100", usage.TotalTokens)
	}
}

func TestJobFailsOnUpstreamError(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{err: errors.New("boom")}
	runner := NewRunner(db, NewMemoryStore(), asker, time.Minute)

	job, errSubmit := runner.Submit(context.Background(), 1, "question", "tutor-v2", 0, false)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	done := waitForTerminal(t, runner, 1, job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if done.Error == "" {
		t.Fatalf("expected an error message on the job")
	}
}

func TestJobFailsOnRuntimeTimeout(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{block: true}
	runner := NewRunner(db, NewMemoryStore(), asker, 50*time.Millisecond)

	job, errSubmit := runner.Submit(context.Background(), 1, "question", "tutor-v2", 0, false)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	done := waitForTerminal(t, runner, 1, job.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if done.Error != "answer timed out" {
		t.Fatalf("error = %q, want timeout message", done.Error)
	}
}

func TestCancelStopsRunningJob(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{block: true}
	runner := NewRunner(db, NewMemoryStore(), asker, time.Minute)

	job, errSubmit := runner.Submit(context.Background(), 1, "question", "tutor-v2", 0, false)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	cancelled, errCancel := runner.Cancel(context.Background(), 1, job.ID)
	if errCancel != nil {
		t.Fatalf("cancel: %v", errCancel)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// The worker observes the cancellation and must not overwrite it.
	time.Sleep(50 * time.Millisecond)
	final, errGet := runner.Result(context.Background(), 1, job.ID)
	if errGet != nil {
		t.Fatalf("result: %v", errGet)
	}
	if final.Status != StatusCancelled {
		t.Fatalf("final status = %s, want cancelled", final.Status)
	}

	if _, errAgain := runner.Cancel(context.Background(), 1, job.ID); errAgain != ErrJobTerminal {
		t.Fatalf("expected ErrJobTerminal on repeat cancel, got %v", errAgain)
	}
}

func TestSubmitReusesExistingChat(t *testing.T) {
	db := setupChatJobDB(t)
	asker := &stubAsker{answer: &Answer{Answer: "ok"}}
	runner := NewRunner(db, NewMemoryStore(), asker, time.Minute)

	first, errSubmit := runner.Submit(context.Background(), 1, "first question", "tutor-v2", 0, true)
	if errSubmit != nil {
		t.Fatalf("first submit: %v", errSubmit)
	}
	waitForTerminal(t, runner, 1, first.ID)

	second, errSubmit := runner.Submit(context.Background(), 1, "follow-up", "tutor-v2", first.ChatID, false)
	if errSubmit != nil {
		t.Fatalf("second submit: %v", errSubmit)
	}
	if second.ChatID != first.ChatID {
		t.Fatalf("chat id = %d, want %d", second.ChatID, first.ChatID)
	}
	waitForTerminal(t, runner, 1, second.ID)
}

func TestSubmitRejectsForeignChat(t *testing.T) {
	db := setupChatJobDB(t)
	chat := models.Chat{UserID: 2}
	if errCreate := db.Create(&chat).Error; errCreate != nil {
		t.Fatalf("create chat: %v", errCreate)
	}
	runner := NewRunner(db, NewMemoryStore(), &stubAsker{answer: &Answer{}}, time.Minute)

	if _, errSubmit := runner.Submit(context.Background(), 1, "question", "tutor-v2", chat.ID, false); errSubmit != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound, got %v", errSubmit)
	}
}

func TestResultHidesForeignJobs(t *testing.T) {
	db := setupChatJobDB(t)
	runner := NewRunner(db, NewMemoryStore(), &stubAsker{answer: &Answer{Answer: "ok"}}, time.Minute)

	job, errSubmit := runner.Submit(context.Background(), 1, "question", "tutor-v2", 0, false)
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	if _, errGet := runner.Result(context.Background(), 2, job.ID); errGet != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound for foreign user, got %v", errGet)
	}
	waitForTerminal(t, runner, 1, job.ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	job := &Job{ID: "j1", Status: StatusCompleted}
	if errSave := store.Save(context.Background(), job, 10*time.Millisecond); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if _, errGet := store.Get(context.Background(), "j1"); errGet != nil {
		t.Fatalf("get before expiry: %v", errGet)
	}
	time.Sleep(20 * time.Millisecond)
	if _, errGet := store.Get(context.Background(), "j1"); errGet != ErrJobNotFound {
		t.Fatalf("expected ErrJobNotFound after expiry, got %v", errGet)
	}
}
