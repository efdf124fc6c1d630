package services

import (
	"errors"
	"fmt"
	"time"

	"packforge-backend/internal/database"
	"packforge-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// TransactionSecret signs credit audit rows. Set once at startup from config.
var TransactionSecret string

// ChargeCredit spends exactly one credit for a metered user. The decrement is
// a single conditional UPDATE so two concurrent generations can never both
// succeed on a balance of one, even across server processes sharing the
// store. RowsAffected == 0 means the balance was already zero and the caller
// must discard the generation result.
func ChargeCredit(userID uint, reason string) (int, error) {
	// The re-read shares the transaction with the decrement so the audit row
	// cannot pick up a balance from an interleaved grant or charge.
	var updated models.User
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ? AND credits > 0", userID).
			UpdateColumn("credits", gorm.Expr("credits - 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientCredits
		}
		return tx.First(&updated, userID).Error
	})
	if err != nil {
		return 0, err
	}

	recordTransaction(&updated, -1, updated.Credits+1, reason, updated.Email, models.TransactionTypeUserConsume)
	InvalidateUserCache(updated.Email)

	return updated.Credits, nil
}

// GrantCredits adds credits to a user, used by the subscription webhook and
// admin adjustments. Amount must be positive.
func GrantCredits(userID uint, amount int, reason string, operator string, txType models.TransactionType) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	var updated models.User
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return tx.First(&updated, userID).Error
	})
	if err != nil {
		return 0, err
	}

	recordTransaction(&updated, amount, updated.Credits-amount, reason, operator, txType)
	InvalidateUserCache(updated.Email)

	return updated.Credits, nil
}

func recordTransaction(user *models.User, amount, balanceBefore int, reason, operator string, txType models.TransactionType) {
	tx := models.Transaction{
		CreatedAt:     time.Now(),
		UserID:        user.ID,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  user.Credits,
		Reason:        reason,
		Operator:      operator,
		Type:          txType,
	}
	tx.Hash = tx.GenerateHash(TransactionSecret)

	// Audit row failures must not fail the charge itself; the balance is
	// already committed.
	if err := database.DB.Create(&tx).Error; err != nil {
		zap.L().Error("failed to record credit transaction",
			zap.Uint("user_id", user.ID), zap.Error(err))
	}
}
