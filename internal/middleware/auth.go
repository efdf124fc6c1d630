package middleware

import (
	"errors"
	"net/http"

	"packforge-backend/internal/models"
	"packforge-backend/internal/services"
	"packforge-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the identity token the external provider issued
// and attaches the matching user record to the request context. The token's
// email claim is the identity key; provisioning on first sight mirrors the
// provider-side account creation flow.
func AuthMiddleware(tokenSecret string, autoProvision bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := utils.ExtractToken(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, err.Error()))
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, tokenSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		email, ok := claims["email"].(string)
		if !ok || email == "" {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Invalid email in token"))
			c.Abort()
			return
		}

		user, err := lookupUser(email, autoProvision)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, utils.NewErrorResponse(http.StatusNotFound, "User not found"))
			} else {
				c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to load user"))
			}
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

func lookupUser(email string, autoProvision bool) (models.User, error) {
	if autoProvision {
		return services.FindOrCreateUserByEmail(email)
	}
	return services.FindUserByEmail(email)
}
