package models

import "time"

// Transaction statuses.
const (
	// TransactionPending marks a payment intent awaiting the gateway callback.
	TransactionPending = "pending"
	// TransactionSuccess marks a confirmed payment.
	TransactionSuccess = "success"
	// TransactionFailed marks a rejected or aborted payment.
	TransactionFailed = "failed"
)

// Transaction records one payment attempt against the gateway.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Paying user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Associated user record.

	OrderID string  `gorm:"type:text;not null;uniqueIndex"` // Order identifier sent to the gateway.
	RefNum  *string `gorm:"type:text"`                      // Gateway reference number after callback.

	PlanID uint64 `gorm:"not null;index"`    // Purchased plan ID.
	Plan   *Plan  `gorm:"foreignKey:PlanID"` // Associated plan record.

	AmountTomans int64  `gorm:"not null"`                              // Charged amount after discount.
	Status       string `gorm:"type:text;not null;default:'pending'"` // pending | success | failed.

	DiscountCode *string `gorm:"type:text"` // Applied discount code, when any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Plan describes a purchasable subscription period.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null"`    // Display name.
	Days        int    `gorm:"not null"`              // Subscription length in days.
	PriceTomans int64  `gorm:"not null"`              // Price in tomans.
	Active      bool   `gorm:"not null;default:true"` // Whether the plan is purchasable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// DiscountCode grants a percentage off a plan price.
type DiscountCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code    string `gorm:"type:text;not null;uniqueIndex"` // Code entered by the user.
	Percent int    `gorm:"not null"`                       // Discount percentage, 1..100.

	MaxUses   int        `gorm:"not null;default:0"`    // 0 means unlimited.
	UsedCount int        `gorm:"not null;default:0"`    // Redemptions so far.
	ExpiresAt *time.Time // Optional expiry timestamp.
	Active    bool       `gorm:"not null;default:true"` // Whether the code is usable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
