package leitner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/porsino-app/porsino-server/internal/models"
	"gorm.io/gorm"
)

func setupLeitnerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:leitner_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.Flashcard{}, &models.MistakeLog{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedLeitnerUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Mobile:       "09123456789",
		Password:     "x",
		ReferralCode: "REF1",
	}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return user
}

func TestReviewFailureResetsCardAndLogsMistake(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	svc := NewService(db)

	card := models.Flashcard{
		UserID:       user.ID,
		Front:        "mitochondria",
		Back:         "powerhouse of the cell",
		BoxLevel:     3,
		NextReviewAt: time.Now().UTC().Add(-time.Hour),
	}
	if errCreate := db.Create(&card).Error; errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}

	updated, errReview := svc.Review(context.Background(), user.ID, card.ID, false)
	if errReview != nil {
		t.Fatalf("review: %v", errReview)
	}
	if updated.BoxLevel != 1 {
		t.Fatalf("box level = %d, want 1", updated.BoxLevel)
	}
	if !updated.NextReviewAt.After(time.Now().UTC()) {
		t.Fatalf("next review not in future: %v", updated.NextReviewAt)
	}

	var mistakes int64
	if errCount := db.Model(&models.MistakeLog{}).
		Where("user_id = ? AND flashcard_id = ?", user.ID, card.ID).
		Count(&mistakes).Error; errCount != nil {
		t.Fatalf("count mistakes: %v", errCount)
	}
	if mistakes != 1 {
		t.Fatalf("mistake rows = %d, want 1", mistakes)
	}
}

func TestReviewSuccessDoesNotLogMistake(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	svc := NewService(db)

	card, errCreate := svc.Create(context.Background(), user.ID, "osmosis", "passive water transport", nil)
	if errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}

	updated, errReview := svc.Review(context.Background(), user.ID, card.ID, true)
	if errReview != nil {
		t.Fatalf("review: %v", errReview)
	}
	if updated.BoxLevel != 2 {
		t.Fatalf("box level = %d, want 2", updated.BoxLevel)
	}

	var mistakes int64
	if errCount := db.Model(&models.MistakeLog{}).Count(&mistakes).Error; errCount != nil {
		t.Fatalf("count mistakes: %v", errCount)
	}
	if mistakes != 0 {
		t.Fatalf("mistake rows = %d, want 0", mistakes)
	}
}

func TestReviewRejectsForeignCard(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	other := models.User{Mobile: "09350000000", Password: "x", ReferralCode: "REF2"}
	if errCreate := db.Create(&other).Error; errCreate != nil {
		t.Fatalf("create other user: %v", errCreate)
	}
	svc := NewService(db)

	card, errCreate := svc.Create(context.Background(), user.ID, "front", "back", nil)
	if errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}

	if _, errReview := svc.Review(context.Background(), other.ID, card.ID, true); errReview != ErrCardNotFound {
		t.Fatalf("expected ErrCardNotFound, got %v", errReview)
	}
}

func TestDueReturnsOnlyDueCardsInOrder(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	svc := NewService(db)

	now := time.Now().UTC()
	cards := []models.Flashcard{
		{UserID: user.ID, Front: "a", Back: "a", BoxLevel: 1, NextReviewAt: now.Add(-2 * time.Hour)},
		{UserID: user.ID, Front: "b", Back: "b", BoxLevel: 2, NextReviewAt: now.Add(-time.Hour)},
		{UserID: user.ID, Front: "c", Back: "c", BoxLevel: 3, NextReviewAt: now.Add(24 * time.Hour)},
	}
	if errCreate := db.Create(&cards).Error; errCreate != nil {
		t.Fatalf("create cards: %v", errCreate)
	}

	due, errDue := svc.Due(context.Background(), user.ID, 10)
	if errDue != nil {
		t.Fatalf("due: %v", errDue)
	}
	if len(due) != 2 {
		t.Fatalf("due cards = %d, want 2", len(due))
	}
	if due[0].Front != "a" || due[1].Front != "b" {
		t.Fatalf("due order = %s,%s, want a,b", due[0].Front, due[1].Front)
	}
}

func TestCreateBatchSkipsBlankEntries(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	svc := NewService(db)

	n, errBatch := svc.CreateBatch(context.Background(), user.ID, "unit-7",
		[]string{"q1", "", "q3"},
		[]string{"a1", "a2", "a3"},
	)
	if errBatch != nil {
		t.Fatalf("create batch: %v", errBatch)
	}
	if n != 2 {
		t.Fatalf("created = %d, want 2", n)
	}

	var count int64
	if errCount := db.Model(&models.Flashcard{}).
		Where("user_id = ? AND source_unit_id = ?", user.ID, "unit-7").
		Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 2 {
		t.Fatalf("stored = %d, want 2", count)
	}
}

func TestDeleteRemovesOwnCardOnly(t *testing.T) {
	db := setupLeitnerDB(t)
	user := seedLeitnerUser(t, db)
	svc := NewService(db)

	card, errCreate := svc.Create(context.Background(), user.ID, "front", "back", nil)
	if errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}

	if errDelete := svc.Delete(context.Background(), user.ID+1, card.ID); errDelete != ErrCardNotFound {
		t.Fatalf("expected ErrCardNotFound for foreign delete, got %v", errDelete)
	}
	if errDelete := svc.Delete(context.Background(), user.ID, card.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if errDelete := svc.Delete(context.Background(), user.ID, card.ID); errDelete != ErrCardNotFound {
		t.Fatalf("expected ErrCardNotFound for repeat delete, got %v", errDelete)
	}
}
