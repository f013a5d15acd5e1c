package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
	cookie      CookieConfig
	now         func() time.Time
}

func NewAuthHandler(authService services.AuthService, cookie CookieConfig, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
		cookie:      cookie,
		now:         time.Now,
	}
}

func (h *AuthHandler) setSession(c *gin.Context, session *services.Session) {
	maxAge := int(session.ExpiresAt.Sub(h.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, session.Token, maxAge, "/", "", h.cookie.Secure, true)
}

// Signup registers a buddy account and starts a session
// @Summary Sign up
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.SignupRequest true "Account data"
// @Success 201 {object} services.Session
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Signing up", "email", req.Email)

	session, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.setSession(c, session)
	c.JSON(http.StatusCreated, session)
}

// Signin verifies credentials and starts a session
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.SigninRequest true "Credentials"
// @Success 200 {object} services.Session
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) Signin(c *gin.Context) {
	var req services.SigninRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Signing in", "email", req.Email)

	session, err := h.authService.Signin(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.setSession(c, session)
	c.JSON(http.StatusOK, session)
}

// Signout clears the session cookie
// @Summary Sign out
// @Tags auth
// @Success 204
// @Router /auth/signout [post]
func (h *AuthHandler) Signout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	c.Status(http.StatusNoContent)
}

// Me returns the session user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the session user's password
// @Summary Change password
// @Tags auth
// @Accept json
// @Param body body services.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req services.ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.LogRequest(c, "Changing password")

	if err := h.authService.ChangePassword(c.Request.Context(), user, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
