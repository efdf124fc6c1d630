package models

import "time"

// User is keyed by the verified email the identity provider hands us.
// Credits only ever move for users with neither unlimited flag set.
type User struct {
	ID               uint `gorm:"primarykey"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Email            string `gorm:"uniqueIndex;not null"`
	Credits          int    `gorm:"not null;default:3;check:credits >= 0"`
	IsPro            bool   `gorm:"not null;default:false"`
	IsLifetime       bool   `gorm:"not null;default:false"`
	StripeCustomerID string `gorm:"index"`
	Version          int    `gorm:"default:1"`
}

// Unlimited reports whether the user bypasses credit metering.
func (u *User) Unlimited() bool {
	return u.IsPro || u.IsLifetime
}
