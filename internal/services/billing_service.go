package services

import (
	"errors"
	"fmt"

	"packforge-backend/internal/database"
	"packforge-backend/internal/models"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"gorm.io/gorm"
)

// SubscriptionBonusCredits is added to the balance each time a subscription
// activates, matching the plan copy ("100 extra generation credits").
const SubscriptionBonusCredits = 100

// EnsureStripeCustomer returns the user's Stripe customer ID, creating the
// customer on first use and persisting the linkage.
func EnsureStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	if err := database.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", err
	}

	user.StripeCustomerID = cust.ID
	InvalidateUserCache(user.Email)
	return cust.ID, nil
}

// ActivateSubscription flips the pro flag for the linked user and grants the
// bonus credits, once per activation. Lifetime flags are never touched here.
func ActivateSubscription(stripeCustomerID string) error {
	user, err := findUserByStripeCustomer(stripeCustomerID)
	if err != nil {
		return err
	}

	if user.IsPro {
		// Duplicate event; entitlement already granted.
		return nil
	}

	if err := database.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_pro", true).Error; err != nil {
		return err
	}
	InvalidateUserCache(user.Email)

	_, err = GrantCredits(user.ID, SubscriptionBonusCredits,
		"Subscription activated", "system", models.TransactionTypeSystemAuto)
	return err
}

// DeactivateSubscription removes the pro flag when the subscription ends.
// Already-granted credits are kept.
func DeactivateSubscription(stripeCustomerID string) error {
	user, err := findUserByStripeCustomer(stripeCustomerID)
	if err != nil {
		return err
	}

	if err := database.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_pro", false).Error; err != nil {
		return err
	}
	InvalidateUserCache(user.Email)
	return nil
}

func findUserByStripeCustomer(stripeCustomerID string) (models.User, error) {
	var user models.User
	if err := database.DB.Where("stripe_customer_id = ?", stripeCustomerID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, fmt.Errorf("no user linked to stripe customer %s: %w", stripeCustomerID, ErrUserNotFound)
		}
		return user, err
	}
	return user, nil
}
