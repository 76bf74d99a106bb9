package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/chatjob"
	"github.com/porsino-app/porsino-server/internal/models"
	"gorm.io/gorm"
)

// ChatHandler handles tutoring chat job and history endpoints.
type ChatHandler struct {
	db     *gorm.DB
	runner *chatjob.Runner
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(db *gorm.DB, runner *chatjob.Runner) *ChatHandler {
	return &ChatHandler{db: db, runner: runner}
}

// submitRequest defines the request body for submitting a question.
type submitRequest struct {
	Message      string `json:"message"`
	ModelID      string `json:"model_id"`
	ChatID       uint64 `json:"chat_id"`
	IsNewProblem bool   `json:"is_new_problem"`
}

// jobResponse is the JSON shape returned for a chat job.
type jobResponse struct {
	ID           string   `json:"id"`
	ChatID       uint64   `json:"chat_id"`
	Status       string   `json:"status"`
	Answer       string   `json:"answer,omitempty"`
	TopicSummary string   `json:"topic_summary,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func toJobResponse(job *chatjob.Job) jobResponse {
	return jobResponse{
		ID:           job.ID,
		ChatID:       job.ChatID,
		Status:       job.Status,
		Answer:       job.Answer,
		TopicSummary: job.TopicSummary,
		Suggestions:  job.Suggestions,
		Error:        job.Error,
	}
}

// Submit enqueues a tutoring question and returns the job id immediately.
func (h *ChatHandler) Submit(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body submitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	job, errSubmit := h.runner.Submit(c.Request.Context(), userID, body.Message, body.ModelID, body.ChatID, body.IsNewProblem)
	if errSubmit != nil {
		switch {
		case errors.Is(errSubmit, chatjob.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		case errors.Is(errSubmit, chatjob.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submit question failed"})
		}
		return
	}

	c.JSON(http.StatusAccepted, toJobResponse(job))
}

// Result returns the current state of a chat job.
func (h *ChatHandler) Result(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	job, errGet := h.runner.Result(c.Request.Context(), userID, c.Param("id"))
	if errGet != nil {
		if errors.Is(errGet, chatjob.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// Cancel stops a running chat job.
func (h *ChatHandler) Cancel(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	job, errCancel := h.runner.Cancel(c.Request.Context(), userID, c.Param("id"))
	if errCancel != nil {
		switch {
		case errors.Is(errCancel, chatjob.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(errCancel, chatjob.ErrJobTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": "job already in a terminal state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel job failed"})
		}
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// ListChats returns the user's conversations, newest first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var chats []models.Chat
	if errList := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&chats).Error; errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type chatResponse struct {
		ID        uint64 `json:"id"`
		Title     string `json:"title"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		out = append(out, chatResponse{
			ID:        chat.ID,
			Title:     chat.Title,
			CreatedAt: chat.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"chats": out})
}

// ListMessages returns the turns of one conversation in order.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, errID := strconv.ParseUint(c.Param("id"), 10, 64)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var chat models.Chat
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", chatID, userID).
		First(&chat).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var messages []models.Message
	if errList := h.db.WithContext(c.Request.Context()).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&messages).Error; errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	type messageResponse struct {
		ID          uint64   `json:"id"`
		Role        string   `json:"role"`
		Content     string   `json:"content"`
		Suggestions []string `json:"suggestions,omitempty"`
		CreatedAt   string   `json:"created_at"`
	}
	out := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		var suggestions []string
		if len(msg.Suggestions) > 0 {
			_ = json.Unmarshal(msg.Suggestions, &suggestions)
		}
		out = append(out, messageResponse{
			ID:          msg.ID,
			Role:        msg.Role,
			Content:     msg.Content,
			Suggestions: suggestions,
			CreatedAt:   msg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chat.ID,
		"title":    chat.Title,
		"messages": out,
	})
}
