package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// ErrorResponse is the body of every failed request. Errors maps fields to
// messages for validation failures.
type ErrorResponse struct {
	Message string            `json:"message"`
	Details interface{}       `json:"details,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	l := utils.FromContext(c, h.logger)
	if id := c.GetString(ctxUserID); id != "" {
		args = append(args, "actor_id", id)
	}
	l.Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.FromContext(c, h.logger).Error(msg, append(args, "error", err)...)
}

// currentUser returns the session user, writing a 401 when there is none.
func (h *BaseHandler) currentUser(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get(ctxUser); ok {
		if user, ok := v.(*models.User); ok {
			return user, true
		}
	}
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Message: "User not authenticated",
	})
	return nil, false
}

// bindJSON decodes the body, writing a 400 on malformed input.
func (h *BaseHandler) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Errors:  validationErrors.Fields(),
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
	case errors.Is(err, services.ErrMenteeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Mentee not found"})
	case errors.Is(err, services.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Note not found"})
	case errors.Is(err, services.ErrAssetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Asset not found"})
	case errors.Is(err, services.ErrFAQNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "FAQ not found"})
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrMenteeEmailTaken),
		errors.Is(err, services.ErrAssetNameTaken),
		errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid email or password"})
	case errors.Is(err, services.ErrInvalidSession), errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
	case errors.Is(err, services.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "File is too large"})
	case errors.Is(err, services.ErrUnsupportedFileType):
		c.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Message: "Unsupported file type"})
	case errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrAssetNotFile),
		errors.Is(err, services.ErrBuddyNotFound),
		errors.Is(err, services.ErrInvalidRecipients),
		errors.Is(err, services.ErrInvalidVariables),
		errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrExternalService):
		h.LogError(c, err, "External service failure")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "An upstream service failed, please retry"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
