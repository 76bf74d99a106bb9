package otp

import (
	"context"
	"time"

	"github.com/porsino-app/porsino-server/internal/models"
	"github.com/porsino-app/porsino-server/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RetentionSweeper periodically deletes stale verification codes.
type RetentionSweeper struct {
	db *gorm.DB
}

// NewRetentionSweeper constructs a sweeper.
func NewRetentionSweeper(db *gorm.DB) *RetentionSweeper {
	if db == nil {
		return nil
	}
	return &RetentionSweeper{db: db}
}

// Start launches the sweep loop in a background goroutine.
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("otp retention sweeper started (interval=%s)", s.interval())
}

// interval reads the configured sweep interval.
func (s *RetentionSweeper) interval() time.Duration {
	minutes := settings.IntValue(settings.OTPRetentionIntervalMinutesKey, settings.DefaultOTPRetentionIntervalMinutes)
	if minutes <= 0 {
		minutes = settings.DefaultOTPRetentionIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *RetentionSweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.SweepOnce(ctx)
		timer := time.NewTimer(s.interval())
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// SweepOnce deletes codes older than the retention age.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) {
	if s == nil || s.db == nil {
		return
	}
	cutoff := time.Now().UTC().Add(-staleAfter)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.VerificationCode{})
	if result.Error != nil {
		log.WithError(result.Error).Warn("otp retention sweeper: delete failed")
		return
	}
	if result.RowsAffected > 0 {
		log.Infof("otp retention sweeper: deleted %d stale codes", result.RowsAffected)
	}
}
