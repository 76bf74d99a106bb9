// Package otp implements the phone-signup verification guard: cooldowns,
// rolling-hour rate limiting, brute-force attempt burning, and dispatch of
// codes through the SMS gateway.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	"github.com/porsino-app/porsino-server/internal/sms"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Guard rule timings.
const (
	// codeTTL is how long a sent code stays verifiable.
	codeTTL = 2 * time.Minute
	// sendCooldown is the minimum gap between sends for one mobile.
	sendCooldown = 2 * time.Minute
	// rateWindow is the rolling window for the hourly send cap.
	rateWindow = time.Hour
	// staleAfter is the age past which codes are swept.
	staleAfter = 2 * time.Hour
	// maxAttempts burns the code once reached.
	maxAttempts = 3
)

// Guard errors surfaced to handlers.
var (
	// ErrInvalidMobile indicates a malformed mobile number.
	ErrInvalidMobile = errors.New("invalid mobile number")
	// ErrAlreadyRegistered indicates a profile already exists for the mobile.
	ErrAlreadyRegistered = errors.New("mobile already registered")
	// ErrCooldown indicates a live code was sent within the cooldown window.
	ErrCooldown = errors.New("code recently sent, wait before retrying")
	// ErrRateLimited indicates the rolling-hour send cap was reached.
	ErrRateLimited = errors.New("too many codes requested this hour")
	// ErrCodeExpired indicates no live code exists for the mobile.
	ErrCodeExpired = errors.New("code expired or never requested")
	// ErrCodeBurned indicates the final failed attempt consumed the code.
	ErrCodeBurned = errors.New("too many wrong attempts, request a new code")
)

// WrongCodeError reports a mismatch and the remaining attempts.
type WrongCodeError struct {
	AttemptsLeft int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("wrong code, %d attempts left", e.AttemptsLeft)
}

// Guard enforces the OTP send and verification rules.
type Guard struct {
	db     *gorm.DB
	sender sms.Sender
}

// NewGuard constructs an OTP guard.
func NewGuard(db *gorm.DB, sender sms.Sender) *Guard {
	return &Guard{db: db, sender: sender}
}

// hourlyLimit reads the configured send cap.
func hourlyLimit() int {
	return settings.IntValue(settings.OTPHourlyLimitKey, settings.DefaultOTPHourlyLimit)
}

// Send applies the send-time rules in order, then generates, persists, and
// dispatches a 5-digit code. On dispatch failure the just-inserted row is
// deleted so the cooldown does not trap the user with no code in hand.
func (g *Guard) Send(ctx context.Context, mobile string) error {
	normalized, ok := ValidMobile(mobile)
	if !ok {
		return ErrInvalidMobile
	}
	now := time.Now().UTC()

	var registered int64
	if errCount := g.db.WithContext(ctx).Model(&models.User{}).
		Where("mobile = ?", normalized).
		Count(&registered).Error; errCount != nil {
		return errCount
	}
	if registered > 0 {
		return ErrAlreadyRegistered
	}

	var recent int64
	if errCount := g.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("mobile = ? AND created_at > ? AND expires_at > ?", normalized, now.Add(-sendCooldown), now).
		Count(&recent).Error; errCount != nil {
		return errCount
	}
	if recent > 0 {
		return ErrCooldown
	}

	var sentThisHour int64
	if errCount := g.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("mobile = ? AND created_at > ?", normalized, now.Add(-rateWindow)).
		Count(&sentThisHour).Error; errCount != nil {
		return errCount
	}
	if sentThisHour >= int64(hourlyLimit()) {
		return ErrRateLimited
	}

	// Passive cleanup of stale codes; the sweeper also runs periodically.
	if errSweep := g.db.WithContext(ctx).
		Where("created_at < ?", now.Add(-staleAfter)).
		Delete(&models.VerificationCode{}).Error; errSweep != nil {
		log.WithError(errSweep).Warn("otp: stale code cleanup failed")
	}

	// Supersede any older live code for this mobile.
	if errSupersede := g.db.WithContext(ctx).
		Where("mobile = ? AND expires_at > ?", normalized, now).
		Delete(&models.VerificationCode{}).Error; errSupersede != nil {
		return errSupersede
	}

	code, errGen := generateCode()
	if errGen != nil {
		return errGen
	}
	row := models.VerificationCode{
		Mobile:    normalized,
		Code:      code,
		ExpiresAt: now.Add(codeTTL),
	}
	if errCreate := g.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return errCreate
	}

	if errSend := g.sender.SendVerifyCode(ctx, normalized, code); errSend != nil {
		if errDelete := g.db.WithContext(ctx).Delete(&row).Error; errDelete != nil {
			log.WithError(errDelete).Warn("otp: compensating delete failed")
		}
		return errSend
	}
	return nil
}

// Verify checks a submitted code. Wrong codes increment attempts; the third
// failure burns the row. A match deletes the row and returns nil.
func (g *Guard) Verify(ctx context.Context, mobile, code string) error {
	normalized, ok := ValidMobile(mobile)
	if !ok {
		return ErrInvalidMobile
	}
	submitted := NormalizeDigits(code)
	now := time.Now().UTC()

	var row models.VerificationCode
	if errFind := g.db.WithContext(ctx).
		Where("mobile = ? AND expires_at > ?", normalized, now).
		Order("created_at DESC").
		First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrCodeExpired
		}
		return errFind
	}

	if row.Code != submitted {
		row.Attempts++
		if row.Attempts >= maxAttempts {
			if errDelete := g.db.WithContext(ctx).Delete(&row).Error; errDelete != nil {
				return errDelete
			}
			return ErrCodeBurned
		}
		if errUpdate := g.db.WithContext(ctx).Model(&row).
			Update("attempts", row.Attempts).Error; errUpdate != nil {
			return errUpdate
		}
		return &WrongCodeError{AttemptsLeft: maxAttempts - row.Attempts}
	}

	if errDelete := g.db.WithContext(ctx).Delete(&row).Error; errDelete != nil {
		log.WithError(errDelete).Warn("otp: success cleanup failed")
	}
	return nil
}

// generateCode returns a random 5-digit numeric code.
func generateCode() (string, error) {
	n, errRand := rand.Int(rand.Reader, big.NewInt(90000))
	if errRand != nil {
		return "", fmt.Errorf("otp: generate code: %w", errRand)
	}
	return fmt.Sprintf("%05d", n.Int64()+10000), nil
}
