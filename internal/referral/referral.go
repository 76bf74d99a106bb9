// Package referral issues invitation codes and credits subscription days when
// a new user signs up with one.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	"gorm.io/gorm"
)

// Referral errors.
var (
	// ErrCodeNotFound indicates an unknown referral code.
	ErrCodeNotFound = errors.New("referral code not found")
	// ErrSelfReferral indicates a user presenting their own code.
	ErrSelfReferral = errors.New("cannot use your own referral code")
)

// codeAlphabet avoids ambiguous characters in shared codes.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// codeLength is the referral code length.
const codeLength = 6

// Service resolves and rewards referral codes.
type Service struct {
	db *gorm.DB
}

// NewService constructs a referral service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GenerateCode produces a short random invitation code.
func GenerateCode() (string, error) {
	var sb strings.Builder
	for i := 0; i < codeLength; i++ {
		n, errRand := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if errRand != nil {
			return "", fmt.Errorf("referral: generate code: %w", errRand)
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// bonusDays reads the configured per-referral reward.
func bonusDays() int {
	return settings.IntValue(settings.ReferralBonusDaysKey, settings.DefaultReferralBonusDays)
}

// Resolve looks up the owner of a referral code.
func (s *Service) Resolve(ctx context.Context, code string) (*models.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeNotFound
	}
	var referrer models.User
	if errFind := s.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&referrer).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errFind
	}
	return &referrer, nil
}

// Credit applies the signup reward to both sides of a referral. Called once,
// right after the referee account is created.
func (s *Service) Credit(ctx context.Context, referrerID, refereeID uint64) error {
	if referrerID == refereeID {
		return ErrSelfReferral
	}
	days := bonusDays()
	if days <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, userID := range []uint64{referrerID, refereeID} {
			if errCredit := creditDays(tx, userID, days); errCredit != nil {
				return errCredit
			}
		}
		return nil
	})
}

// creditDays extends one user's subscription window by the bonus days.
func creditDays(tx *gorm.DB, userID uint64, days int) error {
	var user models.User
	if errFind := tx.First(&user, userID).Error; errFind != nil {
		return errFind
	}
	now := time.Now().UTC()
	base := now
	if user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(now) {
		base = *user.SubscriptionExpiresAt
	}
	expires := base.AddDate(0, 0, days)
	return tx.Model(&user).Update("subscription_expires_at", expires).Error
}

// ReferredCount returns how many signups used the user's code.
func (s *Service) ReferredCount(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.User{}).
		Where("referred_by = ?", userID).
		Count(&count).Error; errCount != nil {
		return 0, errCount
	}
	return count, nil
}
