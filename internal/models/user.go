package models

import "time"

// User represents a registered learner account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Mobile   string `gorm:"type:text;not null;uniqueIndex"` // Normalized mobile number (09xxxxxxxxx).
	Name     string `gorm:"type:text"`                      // Display name.
	Grade    string `gorm:"type:text"`                      // School grade label.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	ReferralCode string  `gorm:"type:text;not null;uniqueIndex"` // Code this user shares with others.
	ReferredBy   *uint64 `gorm:"index"`                          // Referrer user ID when signed up with a code.

	SubscriptionExpiresAt *time.Time `gorm:"index"` // End of the paid subscription window.

	Active   bool `gorm:"not null;default:true"`  // Whether the account is enabled.
	Disabled bool `gorm:"not null;default:false"` // Administrative lockout flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// HasActiveSubscription reports whether the subscription window covers now.
func (u *User) HasActiveSubscription(now time.Time) bool {
	return u.SubscriptionExpiresAt != nil && u.SubscriptionExpiresAt.After(now)
}
