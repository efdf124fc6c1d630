package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"packforge-backend/internal/database"
	"packforge-backend/internal/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Entitlement is the resolved permission to run a generation.
type Entitlement struct {
	Allowed bool `json:"allowed"`
	Metered bool `json:"metered"`
	Balance int  `json:"balance"`
}

// ResolveEntitlement decides whether the user may generate and whether the
// action will consume a credit. Read-only; the actual deduction happens in
// ChargeCredit after the generation has succeeded.
func ResolveEntitlement(user *models.User) Entitlement {
	metered := !user.Unlimited()
	return Entitlement{
		Allowed: !metered || user.Credits > 0,
		Metered: metered,
		Balance: user.Credits,
	}
}

func userCacheKey(email string) string {
	return fmt.Sprintf("user:email:%s", email)
}

// FindUserByEmail loads a user record, going through the Redis cache when one
// is configured.
func FindUserByEmail(email string) (models.User, error) {
	cacheKey := userCacheKey(email)
	if database.RedisClient != nil {
		val, err := database.RedisClient.Get(database.Ctx, cacheKey).Result()
		if err == nil {
			var user models.User
			if err := json.Unmarshal([]byte(val), &user); err == nil {
				return user, nil
			}
		}
	}

	var user models.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}

	if database.RedisClient != nil {
		if data, err := json.Marshal(user); err == nil {
			database.RedisClient.Set(database.Ctx, cacheKey, data, time.Hour)
		}
	}

	return user, nil
}

// FindOrCreateUserByEmail provisions a record on first authentication, the
// same way the payment-customer linkage does.
func FindOrCreateUserByEmail(email string) (models.User, error) {
	user, err := FindUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return user, err
	}

	user = models.User{Email: email}
	if err := database.DB.Where(models.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
		return user, err
	}

	// Re-read so column defaults (starter credits) are reflected in the
	// returned record, and the cache is warmed with the persisted row.
	return FindUserByEmail(email)
}

// InvalidateUserCache drops the cached record after any credit or entitlement
// mutation.
func InvalidateUserCache(email string) {
	if database.RedisClient != nil {
		database.RedisClient.Del(database.Ctx, userCacheKey(email))
	}
}
