package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/progress"
)

// ProgressHandler handles lesson and chapter progress endpoints.
type ProgressHandler struct {
	progress *progress.Service
}

// NewProgressHandler constructs a ProgressHandler.
func NewProgressHandler(svc *progress.Service) *ProgressHandler {
	return &ProgressHandler{progress: svc}
}

// upsertProgressRequest defines the request body for recording activity progress.
type upsertProgressRequest struct {
	LessonKey  string `json:"lesson_key"`
	ActivityID string `json:"activity_id"`
	Percent    int    `json:"percent"`
}

// Upsert records an activity's completion percentage. Last write wins.
func (h *ProgressHandler) Upsert(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body upsertProgressRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lessonKey := strings.TrimSpace(body.LessonKey)
	if lessonKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing lesson key"})
		return
	}

	errUpsert := h.progress.UpsertProgress(c.Request.Context(), userID, lessonKey, body.ActivityID, body.Percent)
	if errUpsert != nil {
		if errors.Is(errUpsert, progress.ErrUnknownActivity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown activity id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save progress failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// LessonStates returns the activity completion and lock states for one lesson.
func (h *ProgressHandler) LessonStates(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	lessonKey := strings.TrimSpace(c.Query("lesson_key"))
	if lessonKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing lesson key"})
		return
	}

	states, errStates := h.progress.LessonStates(c.Request.Context(), userID, lessonKey)
	if errStates != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lesson_key": lessonKey,
		"activities": states,
	})
}

// completeChapterStepRequest defines the request body for chapter map updates.
type completeChapterStepRequest struct {
	ChapterID      string `json:"chapter_id"`
	CompletedSteps int    `json:"completed_steps"`
}

// CompleteChapterStep records how many units of a chapter are finished.
func (h *ProgressHandler) CompleteChapterStep(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body completeChapterStepRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	chapterID := strings.TrimSpace(body.ChapterID)
	if chapterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing chapter id"})
		return
	}
	if body.CompletedSteps < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid completed steps"})
		return
	}

	if errStep := h.progress.CompleteChapterStep(c.Request.Context(), userID, chapterID, body.CompletedSteps); errStep != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save chapter progress failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Chapters returns the chapter map progress for the current user.
func (h *ProgressHandler) Chapters(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, errList := h.progress.ChapterProgress(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type chapterResponse struct {
		ChapterID      string `json:"chapter_id"`
		CompletedSteps int    `json:"completed_steps"`
	}
	out := make([]chapterResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, chapterResponse{ChapterID: row.ChapterID, CompletedSteps: row.CompletedSteps})
	}
	c.JSON(http.StatusOK, gin.H{"chapters": out})
}
