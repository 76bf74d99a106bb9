package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/progress"
)

func upsertProgressForTest(t *testing.T, h *ProgressHandler, userID uint64, lessonKey, activityID string, percent int) {
	t.Helper()
	c, w := newJSONContext(t, http.MethodPost, "/v0/front/progress", gin.H{
		"lesson_key":  lessonKey,
		"activity_id": activityID,
		"percent":     percent,
	})
	c.Set("userID", userID)
	h.Upsert(c)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert %s=%d: expected status 200, got %d body=%s", activityID, percent, w.Code, w.Body.String())
	}
}

func lessonStatesForTest(t *testing.T, h *ProgressHandler, userID uint64, lessonKey string) map[string]struct {
	Percent int
	Locked  bool
} {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/front/progress/lesson?lesson_key="+lessonKey, nil)
	c.Set("userID", userID)
	h.LessonStates(c)
	if w.Code != http.StatusOK {
		t.Fatalf("lesson states: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Activities []struct {
			ActivityID string `json:"activity_id"`
			Percent    int    `json:"percent"`
			Locked     bool   `json:"locked"`
		} `json:"activities"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	out := make(map[string]struct {
		Percent int
		Locked  bool
	}, len(resp.Activities))
	for _, state := range resp.Activities {
		out[state.ActivityID] = struct {
			Percent int
			Locked  bool
		}{Percent: state.Percent, Locked: state.Locked}
	}
	return out
}

func TestLessonStatesUnlockExamAtThreshold(t *testing.T) {
	conn := setupHandlersDB(t)
	user := seedHandlerUser(t, conn, "09130000001", "PROG01")
	h := NewProgressHandler(progress.NewService(conn))

	states := lessonStatesForTest(t, h, user.ID, "grade9-unit2")
	if !states[models.ActivityExam].Locked || !states[models.ActivitySpeedTest].Locked {
		t.Fatalf("expected exam and speed-test locked with no progress")
	}
	if states[models.ActivityReading].Locked {
		t.Fatalf("expected reading never locked")
	}

	upsertProgressForTest(t, h, user.ID, "grade9-unit2", models.ActivityReading, 90)
	upsertProgressForTest(t, h, user.ID, "grade9-unit2", models.ActivityFlashcard, 79)
	states = lessonStatesForTest(t, h, user.ID, "grade9-unit2")
	if !states[models.ActivityExam].Locked {
		t.Fatalf("expected exam locked at 90/79")
	}

	upsertProgressForTest(t, h, user.ID, "grade9-unit2", models.ActivityFlashcard, 80)
	states = lessonStatesForTest(t, h, user.ID, "grade9-unit2")
	if states[models.ActivityExam].Locked || states[models.ActivitySpeedTest].Locked {
		t.Fatalf("expected exam and speed-test unlocked at 90/80")
	}
	if states[models.ActivityReading].Percent != 90 {
		t.Fatalf("expected reading percent 90, got %d", states[models.ActivityReading].Percent)
	}
}

func TestUpsertUnknownActivityRejected(t *testing.T) {
	conn := setupHandlersDB(t)
	user := seedHandlerUser(t, conn, "09130000002", "PROG02")
	h := NewProgressHandler(progress.NewService(conn))

	c, w := newJSONContext(t, http.MethodPost, "/v0/front/progress", gin.H{
		"lesson_key":  "grade9-unit2",
		"activity_id": "karaoke",
		"percent":     50,
	})
	c.Set("userID", user.ID)
	h.Upsert(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestChapterProgressRoundTrip(t *testing.T) {
	conn := setupHandlersDB(t)
	user := seedHandlerUser(t, conn, "09130000003", "PROG03")
	h := NewProgressHandler(progress.NewService(conn))

	c, w := newJSONContext(t, http.MethodPost, "/v0/front/progress/chapter", gin.H{
		"chapter_id":      "grade9-ch1",
		"completed_steps": 3,
	})
	c.Set("userID", user.ID)
	h.CompleteChapterStep(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/front/progress/chapters", nil)
	c.Set("userID", user.ID)
	h.Chapters(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Chapters []struct {
			ChapterID      string `json:"chapter_id"`
			CompletedSteps int    `json:"completed_steps"`
		} `json:"chapters"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Chapters) != 1 || resp.Chapters[0].ChapterID != "grade9-ch1" || resp.Chapters[0].CompletedSteps != 3 {
		t.Fatalf("unexpected chapters payload: %+v", resp.Chapters)
	}
}
