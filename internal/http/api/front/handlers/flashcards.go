package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/porsino-app/porsino-server/internal/leitner"
	"github.com/porsino-app/porsino-server/internal/models"
)

// FlashcardHandler handles Leitner flashcard endpoints.
type FlashcardHandler struct {
	cards *leitner.Service
}

// NewFlashcardHandler constructs a FlashcardHandler.
func NewFlashcardHandler(cards *leitner.Service) *FlashcardHandler {
	return &FlashcardHandler{cards: cards}
}

// flashcardResponse is the JSON shape returned for a single card.
type flashcardResponse struct {
	ID           uint64  `json:"id"`
	Front        string  `json:"front"`
	Back         string  `json:"back"`
	BoxLevel     int     `json:"box_level"`
	NextReviewAt string  `json:"next_review_at"`
	SourceUnitID *string `json:"source_unit_id,omitempty"`
}

func toFlashcardResponse(card *models.Flashcard) flashcardResponse {
	return flashcardResponse{
		ID:           card.ID,
		Front:        card.Front,
		Back:         card.Back,
		BoxLevel:     card.BoxLevel,
		NextReviewAt: card.NextReviewAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		SourceUnitID: card.SourceUnitID,
	}
}

// List returns all cards of the current user.
func (h *FlashcardHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cards, errList := h.cards.List(c.Request.Context(), userID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]flashcardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, toFlashcardResponse(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"flashcards": out})
}

// Due returns cards whose review time has arrived.
func (h *FlashcardHandler) Due(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	cards, errDue := h.cards.Due(c.Request.Context(), userID, limit)
	if errDue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]flashcardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, toFlashcardResponse(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{"flashcards": out})
}

// createFlashcardRequest defines the request body for creating one card.
type createFlashcardRequest struct {
	Front        string  `json:"front"`
	Back         string  `json:"back"`
	SourceUnitID *string `json:"source_unit_id"`
}

// Create adds a single card to box one.
func (h *FlashcardHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createFlashcardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	card, errCreate := h.cards.Create(c.Request.Context(), userID, body.Front, body.Back, body.SourceUnitID)
	if errCreate != nil {
		if errors.Is(errCreate, leitner.ErrEmptyCard) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "flashcard front and back are required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create flashcard failed"})
		return
	}

	c.JSON(http.StatusCreated, toFlashcardResponse(card))
}

// createBatchRequest defines the request body for importing a lesson's cards.
type createBatchRequest struct {
	UnitID string   `json:"unit_id"`
	Fronts []string `json:"fronts"`
	Backs  []string `json:"backs"`
}

// CreateBatch imports a unit's vocabulary as flashcards, skipping blanks.
func (h *FlashcardHandler) CreateBatch(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createBatchRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Fronts) != len(body.Backs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fronts and backs length mismatch"})
		return
	}

	created, errBatch := h.cards.CreateBatch(c.Request.Context(), userID, body.UnitID, body.Fronts, body.Backs)
	if errBatch != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create flashcards failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": created})
}

// reviewFlashcardRequest defines the request body for recording a review.
type reviewFlashcardRequest struct {
	KnewAnswer bool `json:"knew_answer"`
}

// Review records a review outcome and reschedules the card.
func (h *FlashcardHandler) Review(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cardID, errID := strconv.ParseUint(c.Param("id"), 10, 64)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flashcard id"})
		return
	}

	var body reviewFlashcardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	card, errReview := h.cards.Review(c.Request.Context(), userID, cardID, body.KnewAnswer)
	if errReview != nil {
		if errors.Is(errReview, leitner.ErrCardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flashcard not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review flashcard failed"})
		return
	}

	c.JSON(http.StatusOK, toFlashcardResponse(card))
}

// Delete removes one of the user's cards.
func (h *FlashcardHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cardID, errID := strconv.ParseUint(c.Param("id"), 10, 64)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flashcard id"})
		return
	}

	if errDelete := h.cards.Delete(c.Request.Context(), userID, cardID); errDelete != nil {
		if errors.Is(errDelete, leitner.ErrCardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flashcard not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete flashcard failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
