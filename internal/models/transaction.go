package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type TransactionType string

const (
	TransactionTypeSystemAdmin TransactionType = "admin_adjustment"
	TransactionTypeSystemAuto  TransactionType = "system_auto"
	TransactionTypeUserConsume TransactionType = "user_consume"
)

// Transaction records a single credit movement. Amounts are whole credits,
// negative for consumption.
type Transaction struct {
	ID            uint            `gorm:"primarykey"`
	CreatedAt     time.Time       `gorm:"precision:3"` // Millisecond precision
	UserID        uint            `gorm:"index;not null"`
	Amount        int             `gorm:"not null"`
	BalanceBefore int             `gorm:"not null"`
	BalanceAfter  int             `gorm:"not null"`
	Reason        string          `gorm:"type:text"`
	Operator      string          `gorm:"type:varchar(100)"` // Email or 'system'
	Type          TransactionType `gorm:"type:varchar(50);index;default:'system_auto'"`
	Hash          string          `gorm:"type:varchar(64);default:''"` // HMAC SHA256
}

// GenerateHash generates a tamper-proof hash for the transaction
func (t *Transaction) GenerateHash(secret string) string {
	data := fmt.Sprintf("%d|%d|%d|%d|%d|%s|%s|%s",
		t.UserID, t.CreatedAt.UnixNano(), t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Reason, t.Operator, t.Type)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
