package user

import "packforge-backend/internal/services"

// UserResponse is the current-user payload: account fields plus the resolved
// entitlement so the frontend can render credit counters and upgrade prompts.
type UserResponse struct {
	ID          uint                 `json:"id"`
	Email       string               `json:"email"`
	Credits     int                  `json:"credits"`
	IsPro       bool                 `json:"is_pro"`
	IsLifetime  bool                 `json:"is_lifetime"`
	Entitlement services.Entitlement `json:"entitlement"`
}
