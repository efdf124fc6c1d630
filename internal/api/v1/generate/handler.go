package generate

import (
	"errors"
	"fmt"
	"net/http"

	"packforge-backend/internal/models"
	"packforge-backend/internal/services"
	"packforge-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler wires the generation pipeline behind the HTTP surface. The
// completion backend is injectable so tests can stub it.
type Handler struct {
	Generation *services.GenerationService
}

func NewHandler(completer services.Completer) *Handler {
	return &Handler{
		Generation: &services.GenerationService{Completer: completer},
	}
}

// Generate godoc
// @Summary Generate a file pack from a prompt
// @Description Runs the prompt through the completion backend and returns either a structured preview or a downloadable zip. Non-preview calls consume one credit for metered users.
// @Tags generate
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body GenerateRequest true "Generation request"
// @Success 200 {object} utils.Response{data=PreviewResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 402 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /generate [post]
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Missing authentication context"))
		return
	}

	// Entitlement check short-circuits before any upstream call is made.
	entitlement := services.ResolveEntitlement(user)
	if !entitlement.Allowed {
		c.JSON(http.StatusPaymentRequired, utils.NewErrorResponse(http.StatusPaymentRequired, "Insufficient credits"))
		return
	}

	result, err := h.Generation.Generate(c.Request.Context(), req.Prompt, req.PackName)
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}

	if req.Preview {
		c.JSON(http.StatusOK, utils.NewSuccessResponse("Pack generated", PreviewResponse{
			PackName: result.RootName,
			Files:    result.Files,
		}))
		return
	}

	if entitlement.Metered {
		_, err := services.ChargeCredit(user.ID, fmt.Sprintf("Pack generation: %s", result.RootName))
		if err != nil {
			if errors.Is(err, services.ErrInsufficientCredits) {
				// A concurrent request spent the last credit between the
				// entitlement check and now. The result must be discarded:
				// no user-visible success without a deducted credit.
				c.JSON(http.StatusPaymentRequired, utils.NewErrorResponse(http.StatusPaymentRequired, "Insufficient credits"))
				return
			}
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to charge credit"))
			return
		}
	}

	archive, err := services.BuildArchive(result)
	if err != nil {
		zap.L().Error("archive build failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to build archive"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.RootName+".zip"))
	c.Data(http.StatusOK, "application/zip", archive)
}

// Chat godoc
// @Summary Raw completion pass-through
// @Description Sends the prompt to the completion backend and returns the text unchanged. Does not consume credits.
// @Tags generate
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ChatRequest true "Chat request"
// @Success 200 {object} utils.Response{data=ChatResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	text, err := h.Generation.Completer.Complete(c.Request.Context(), "", req.Prompt)
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Completion succeeded", ChatResponse{Text: text}))
}

func (h *Handler) writeGenerationError(c *gin.Context, err error) {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		zap.L().Error("completion backend failure",
			zap.Int("status", upstream.StatusCode),
			zap.String("body", upstream.Body),
			zap.Error(err))
		if upstream.Transport() {
			c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Completion backend unreachable"))
			return
		}
		c.JSON(http.StatusBadGateway, utils.NewResponse(http.StatusBadGateway, "Upstream error", UpstreamData{
			Details: upstream.SanitizedBody(),
		}))
		return
	}

	var malformed *services.MalformedResponseError
	if errors.As(err, &malformed) {
		zap.L().Error("malformed model response", zap.String("reason", malformed.Reason))
		c.JSON(http.StatusInternalServerError, utils.NewResponse(http.StatusInternalServerError, "Model returned malformed output", MalformedData{
			Raw: malformed.Raw,
		}))
		return
	}

	zap.L().Error("generation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Generation failed"))
}

func currentUser(c *gin.Context) *models.User {
	userVal, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := userVal.(models.User)
	if !ok {
		return nil
	}
	return &user
}
