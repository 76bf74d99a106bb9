package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/porsino-app/porsino-server/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service errors.
var (
	// ErrPlanNotFound indicates an unknown or inactive plan.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidDiscount indicates an unusable discount code.
	ErrInvalidDiscount = errors.New("invalid discount code")
	// ErrTransactionNotFound indicates an unknown order id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadySettled indicates a callback for a finished transaction.
	ErrAlreadySettled = errors.New("transaction already settled")
	// ErrBadSignature indicates a callback with a wrong signature.
	ErrBadSignature = errors.New("invalid callback signature")
)

// TokenCreator abstracts the gateway for intent creation.
type TokenCreator interface {
	CreateToken(ctx context.Context, amountTomans int64, orderID string) (string, error)
	RedirectURL(token string) string
	CallbackURL() string
	Secret() string
}

// Service creates pending transactions and settles gateway callbacks.
type Service struct {
	db      *gorm.DB
	gateway TokenCreator
}

// NewService constructs a payment service.
func NewService(db *gorm.DB, gateway TokenCreator) *Service {
	return &Service{db: db, gateway: gateway}
}

// Intent is the result of creating a payment.
type Intent struct {
	Transaction *models.Transaction
	RedirectURL string
}

// CreateIntent resolves the plan and discount, records a pending transaction,
// and obtains the gateway redirect.
func (s *Service) CreateIntent(ctx context.Context, userID, planID uint64, discountCode string) (*Intent, error) {
	var plan models.Plan
	if errFind := s.db.WithContext(ctx).
		Where("id = ? AND active = ?", planID, true).
		First(&plan).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, errFind
	}

	amount := plan.PriceTomans
	var appliedCode *string
	discountCode = strings.TrimSpace(discountCode)
	if discountCode != "" {
		discounted, errDiscount := s.applyDiscount(ctx, discountCode, amount)
		if errDiscount != nil {
			return nil, errDiscount
		}
		amount = discounted
		appliedCode = &discountCode
	}

	tx := models.Transaction{
		UserID:       userID,
		OrderID:      uuid.NewString(),
		PlanID:       plan.ID,
		AmountTomans: amount,
		Status:       models.TransactionPending,
		DiscountCode: appliedCode,
	}
	if errCreate := s.db.WithContext(ctx).Create(&tx).Error; errCreate != nil {
		return nil, errCreate
	}

	token, errToken := s.gateway.CreateToken(ctx, amount, tx.OrderID)
	if errToken != nil {
		// Leave the pending row; the user may retry with a fresh order.
		if errFail := s.db.WithContext(ctx).Model(&tx).
			Update("status", models.TransactionFailed).Error; errFail != nil {
			log.WithError(errFail).Warn("payment: mark failed intent failed")
		}
		return nil, errToken
	}

	return &Intent{Transaction: &tx, RedirectURL: s.gateway.RedirectURL(token)}, nil
}

// applyDiscount validates the code and returns the discounted amount.
func (s *Service) applyDiscount(ctx context.Context, code string, amount int64) (int64, error) {
	var discount models.DiscountCode
	if errFind := s.db.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		First(&discount).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidDiscount
		}
		return 0, errFind
	}
	now := time.Now().UTC()
	if discount.ExpiresAt != nil && discount.ExpiresAt.Before(now) {
		return 0, ErrInvalidDiscount
	}
	if discount.MaxUses > 0 && discount.UsedCount >= discount.MaxUses {
		return 0, ErrInvalidDiscount
	}
	if discount.Percent <= 0 || discount.Percent > 100 {
		return 0, ErrInvalidDiscount
	}
	return amount - amount*int64(discount.Percent)/100, nil
}

// Settle applies the gateway callback exactly once. The signature covers the
// transaction amount, order id, and the configured callback URL.
func (s *Service) Settle(ctx context.Context, orderID, refNum, signature string, success bool) (*models.Transaction, error) {
	var tx models.Transaction
	if errFind := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&tx).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, errFind
	}
	if tx.Status != models.TransactionPending {
		return &tx, ErrAlreadySettled
	}
	if !VerifySign(s.gateway.Secret(), tx.AmountTomans, tx.OrderID, s.gateway.CallbackURL(), signature) {
		return nil, ErrBadSignature
	}

	status := models.TransactionFailed
	if success {
		status = models.TransactionSuccess
	}

	errTx := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		result := dbtx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", tx.ID, models.TransactionPending).
			Updates(map[string]any{"status": status, "ref_num": refNum})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAlreadySettled
		}
		if !success {
			return nil
		}
		if errExtend := extendSubscription(dbtx, tx.UserID, tx.PlanID); errExtend != nil {
			return errExtend
		}
		if tx.DiscountCode != nil {
			if errUse := dbtx.Model(&models.DiscountCode{}).
				Where("code = ?", *tx.DiscountCode).
				UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error; errUse != nil {
				return errUse
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	tx.Status = status
	tx.RefNum = &refNum
	return &tx, nil
}

// extendSubscription pushes the user's subscription window out by the plan days.
// An expired or missing window restarts from now.
func extendSubscription(dbtx *gorm.DB, userID, planID uint64) error {
	var plan models.Plan
	if errFind := dbtx.First(&plan, planID).Error; errFind != nil {
		return errFind
	}
	var user models.User
	if errFind := dbtx.First(&user, userID).Error; errFind != nil {
		return errFind
	}

	now := time.Now().UTC()
	base := now
	if user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(now) {
		base = *user.SubscriptionExpiresAt
	}
	expires := base.AddDate(0, 0, plan.Days)
	return dbtx.Model(&user).Update("subscription_expires_at", expires).Error
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uint64) ([]models.Transaction, error) {
	var rows []models.Transaction
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}
