package leitner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/porsino-app/porsino-server/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service errors.
var (
	// ErrCardNotFound indicates the flashcard does not exist or belongs to another user.
	ErrCardNotFound = errors.New("flashcard not found")
	// ErrEmptyCard indicates a card with a blank front or back.
	ErrEmptyCard = errors.New("flashcard front and back are required")
)

// Service persists flashcards and applies the box schedule on review.
type Service struct {
	db *gorm.DB
}

// NewService constructs a flashcard service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create adds a card to the user's box, due immediately.
func (s *Service) Create(ctx context.Context, userID uint64, front, back string, sourceUnitID *string) (*models.Flashcard, error) {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" || back == "" {
		return nil, ErrEmptyCard
	}

	card := models.Flashcard{
		UserID:       userID,
		Front:        front,
		Back:         back,
		BoxLevel:     models.MinBoxLevel,
		NextReviewAt: time.Now().UTC(),
		SourceUnitID: sourceUnitID,
	}
	if errCreate := s.db.WithContext(ctx).Create(&card).Error; errCreate != nil {
		return nil, errCreate
	}
	return &card, nil
}

// CreateBatch adds the cards generated at the end of a lesson unit.
// Blank entries are skipped; nothing is written when all entries are blank.
func (s *Service) CreateBatch(ctx context.Context, userID uint64, unitID string, fronts, backs []string) (int, error) {
	if len(fronts) != len(backs) {
		return 0, ErrEmptyCard
	}
	now := time.Now().UTC()
	cards := make([]models.Flashcard, 0, len(fronts))
	for i := range fronts {
		front := strings.TrimSpace(fronts[i])
		back := strings.TrimSpace(backs[i])
		if front == "" || back == "" {
			continue
		}
		cards = append(cards, models.Flashcard{
			UserID:       userID,
			Front:        front,
			Back:         back,
			BoxLevel:     models.MinBoxLevel,
			NextReviewAt: now,
			SourceUnitID: &unitID,
		})
	}
	if len(cards) == 0 {
		return 0, nil
	}
	if errCreate := s.db.WithContext(ctx).Create(&cards).Error; errCreate != nil {
		return 0, errCreate
	}
	return len(cards), nil
}

// Review applies the recall outcome to a card and logs mistakes for analytics.
func (s *Service) Review(ctx context.Context, userID, cardID uint64, knewAnswer bool) (*models.Flashcard, error) {
	var card models.Flashcard
	if errFind := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cardID, userID).
		First(&card).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, errFind
	}

	newLevel, nextReviewAt := Schedule(card.BoxLevel, knewAnswer, time.Now().UTC())
	if errUpdate := s.db.WithContext(ctx).Model(&card).Updates(map[string]any{
		"box_level":      newLevel,
		"next_review_at": nextReviewAt,
	}).Error; errUpdate != nil {
		return nil, errUpdate
	}
	card.BoxLevel = newLevel
	card.NextReviewAt = nextReviewAt

	if !knewAnswer {
		mistake := models.MistakeLog{UserID: userID, FlashcardID: card.ID}
		if errLog := s.db.WithContext(ctx).Create(&mistake).Error; errLog != nil {
			// Analytics only; the review itself already succeeded.
			log.WithError(errLog).Warn("leitner: log mistake failed")
		}
	}
	return &card, nil
}

// Due returns cards due at or before now, oldest first.
func (s *Service) Due(ctx context.Context, userID uint64, limit int) ([]models.Flashcard, error) {
	if limit <= 0 {
		limit = 20
	}
	var cards []models.Flashcard
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND next_review_at <= ?", userID, time.Now().UTC()).
		Order("next_review_at ASC").
		Limit(limit).
		Find(&cards).Error; errFind != nil {
		return nil, errFind
	}
	return cards, nil
}

// List returns all of the user's cards, newest first.
func (s *Service) List(ctx context.Context, userID uint64) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&cards).Error; errFind != nil {
		return nil, errFind
	}
	return cards, nil
}

// Delete removes a card owned by the user.
func (s *Service) Delete(ctx context.Context, userID, cardID uint64) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cardID, userID).
		Delete(&models.Flashcard{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}
