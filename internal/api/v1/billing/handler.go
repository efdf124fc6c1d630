package billing

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"packforge-backend/config"
	"packforge-backend/internal/models"
	"packforge-backend/internal/services"
	"packforge-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

type Handler struct {
	Cfg *config.Config
}

func NewHandler(cfg *config.Config) *Handler {
	stripe.Key = cfg.StripeSecretKey
	return &Handler{Cfg: cfg}
}

// CreateCheckoutSession godoc
// @Summary Start a subscription checkout
// @Description Creates a Stripe Checkout Session for the monthly or yearly plan and returns its URL.
// @Tags billing
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CheckoutRequest true "Price selection"
// @Success 200 {object} utils.Response{data=CheckoutResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /billing/checkout [post]
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req CheckoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Missing authentication context"))
		return
	}
	user, ok := userVal.(models.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Invalid user context"))
		return
	}

	priceID := h.Cfg.StripePriceMonthlyID
	if req.Price == "yearly" {
		priceID = h.Cfg.StripePriceYearlyID
	}

	customerID, err := services.EnsureStripeCustomer(&user)
	if err != nil {
		zap.L().Error("failed to prepare billing customer", zap.Uint("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to prepare billing"))
		return
	}

	origin := strings.TrimRight(h.Cfg.CheckoutOrigin, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(origin + "/profile?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(origin + "/"),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		zap.L().Error("stripe checkout session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to create checkout session"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Checkout session created", CheckoutResponse{URL: sess.URL}))
}

// Webhook godoc
// @Summary Stripe subscription webhook
// @Description Verifies the event signature and updates the user's entitlement. Activation also grants bonus credits.
// @Tags billing
// @Accept json
// @Produce json
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Router /billing/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid payload"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		h.Cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		zap.L().Warn("stripe webhook signature failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Signature verification failed"))
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			zap.L().Error("stripe session unmarshal failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid event payload"))
			return
		}
		if sess.Customer != nil {
			if err := services.ActivateSubscription(sess.Customer.ID); err != nil {
				zap.L().Error("subscription activation failed",
					zap.String("customer", sess.Customer.ID), zap.Error(err))
			}
		}

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			zap.L().Error("stripe subscription unmarshal failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid event payload"))
			return
		}
		if sub.Customer != nil {
			// Renewals and reactivations come through as updates; a lapsed
			// status on the same event downgrades instead.
			var err error
			if subscriptionActive(sub.Status) {
				err = services.ActivateSubscription(sub.Customer.ID)
			} else {
				err = services.DeactivateSubscription(sub.Customer.ID)
			}
			if err != nil {
				zap.L().Error("subscription update failed",
					zap.String("customer", sub.Customer.ID),
					zap.String("status", string(sub.Status)), zap.Error(err))
			}
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			zap.L().Error("stripe subscription unmarshal failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid event payload"))
			return
		}
		if sub.Customer != nil {
			if err := services.DeactivateSubscription(sub.Customer.ID); err != nil {
				zap.L().Error("subscription deactivation failed",
					zap.String("customer", sub.Customer.ID), zap.Error(err))
			}
		}

	default:
		// Other events are acknowledged and ignored.
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Event processed", nil))
}

func subscriptionActive(status stripe.SubscriptionStatus) bool {
	return status == stripe.SubscriptionStatusActive || status == stripe.SubscriptionStatusTrialing
}
