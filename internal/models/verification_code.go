package models

import "time"

// VerificationCode stores a pending OTP for phone signup.
type VerificationCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Mobile string `gorm:"type:text;not null;index"` // Normalized mobile number.
	Code   string `gorm:"type:text;not null"`       // 5-digit numeric code.

	Attempts  int       `gorm:"not null;default:0"` // Failed verification attempts, 0..3.
	ExpiresAt time.Time `gorm:"not null;index"`     // Expiry timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// Expired reports whether the code is past its expiry.
func (v *VerificationCode) Expired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}
