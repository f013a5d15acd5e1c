package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

// Context keys set by the session middleware.
const (
	ctxUserID    = "user_id"
	ctxUser      = "user"
	ctxUserRole  = "user_role"
	ctxUserEmail = "user_email"
)

// SetupMiddleware sets up common middleware for the Gin router
func SetupMiddleware(router *gin.Engine, logger utils.Logger, metrics *Metrics) {
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware())
	router.Use(gin.Recovery())

	// Context logger middleware (adds logger with request_id to context)
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))

	if metrics != nil {
		router.Use(metrics.Middleware())
	}
	router.Use(SecurityMiddleware())
}

// SecurityMiddleware adds security headers
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Next()
	}
}

// RequestIDMiddleware generates a unique request ID for each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORSMiddleware provides CORS support
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "43200")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SessionMiddleware authenticates requests by the session cookie or a bearer
// token.
type SessionMiddleware struct {
	BaseHandler
	auth       services.AuthService
	cookieName string
}

func NewSessionMiddleware(auth services.AuthService, cookieName string, logger utils.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		BaseHandler: NewBaseHandler(logger),
		auth:        auth,
		cookieName:  cookieName,
	}
}

func (m *SessionMiddleware) token(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	cookie, err := c.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

func (m *SessionMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.auth.Authenticate(c.Request.Context(), m.token(c))
		if errors.Is(err, services.ErrInvalidSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}
		if err != nil {
			m.handleServiceError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUser, user)
		c.Set(ctxUserRole, user.Role)
		c.Set(ctxUserEmail, user.Email)
		c.Next()
	}
}

// RequireRoleMiddleware admits users whose role is at least min.
func (m *SessionMiddleware) RequireRoleMiddleware(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ctxUserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "User role not found in context",
			})
			return
		}
		if r, ok := role.(models.Role); !ok || !r.AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Access denied",
				Details: map[string]interface{}{"requiredRole": min},
			})
			return
		}
		c.Next()
	}
}
