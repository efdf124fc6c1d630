package user

import (
	"net/http"

	"packforge-backend/internal/models"
	"packforge-backend/internal/services"
	"packforge-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// CurrentUser godoc
// @Summary Get the authenticated user
// @Description Returns account fields and the resolved generation entitlement.
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=UserResponse}
// @Failure 401 {object} utils.Response
// @Router /user/me [get]
func CurrentUser(c *gin.Context) {
	userVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Missing authentication context"))
		return
	}

	u, ok := userVal.(models.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Invalid user context"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("User retrieved successfully", UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Credits:     u.Credits,
		IsPro:       u.IsPro,
		IsLifetime:  u.IsLifetime,
		Entitlement: services.ResolveEntitlement(&u),
	}))
}
