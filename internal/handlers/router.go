package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/services"
	"github.com/ibuddy-app/ibuddy-service/internal/utils"
)

type HandlerManager struct {
	authHandler    *AuthHandler
	userHandler    *UserHandler
	menteeHandler  *MenteeHandler
	assetHandler   *AssetHandler
	faqHandler     *FAQHandler
	authMiddleware *SessionMiddleware
	metrics        *Metrics
	health         func(ctx context.Context) error
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	cookie CookieConfig,
	metrics *Metrics,
) *HandlerManager {
	return &HandlerManager{
		authHandler:    NewAuthHandler(serviceManager.Auth(), cookie, logger),
		userHandler:    NewUserHandler(serviceManager.User(), logger),
		menteeHandler:  NewMenteeHandler(serviceManager.Mentee(), serviceManager.Mail(), logger),
		assetHandler:   NewAssetHandler(serviceManager.Asset(), logger),
		faqHandler:     NewFAQHandler(serviceManager.FAQ(), logger),
		authMiddleware: NewSessionMiddleware(serviceManager.Auth(), cookie.Name, logger),
		metrics:        metrics,
		health:         serviceManager.HealthCheck,
	}
}

func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := hm.health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "ibuddy-service",
	})
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.Handler())
	}

	auth := router.Group("/auth")
	{
		auth.POST("/signup", hm.authHandler.Signup)
		auth.POST("/signin", hm.authHandler.Signin)
		auth.POST("/signout", hm.authHandler.Signout)
		auth.GET("/me", hm.authMiddleware.AuthMiddleware(), hm.authHandler.Me)
		auth.PUT("/password", hm.authMiddleware.AuthMiddleware(), hm.authHandler.ChangePassword)
	}

	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleHR)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		users := v1.Group("/users")
		{
			users.GET("", staff, hm.userHandler.ListUsers)
			users.POST("", staff, hm.userHandler.CreateUser)
			users.GET("/buddies", staff, hm.userHandler.ListBuddies)
			users.GET("/roles", hm.userHandler.RoleOptions)
			users.GET("/:email", hm.userHandler.GetUser)
			users.PUT("/:email", hm.userHandler.UpdateUser)
			users.DELETE("/:email", staff, hm.userHandler.DeleteUser)
			users.GET("/:email/can-delete", hm.userHandler.CanDeleteUser)
		}

		mentees := v1.Group("/mentees")
		{
			mentees.GET("", hm.menteeHandler.ListMentees)
			mentees.POST("", staff, hm.menteeHandler.CreateMentee)
			mentees.GET("/export", hm.menteeHandler.ExportMentees)
			mentees.POST("/email", hm.menteeHandler.SendEmail)
			mentees.GET("/:id", hm.menteeHandler.GetMentee)
			mentees.PUT("/:id", hm.menteeHandler.UpdateMentee)
			mentees.PUT("/:id/status", hm.menteeHandler.UpdateMenteeStatus)
			mentees.DELETE("/:id", staff, hm.menteeHandler.DeleteMentee)

			mentees.GET("/:id/notes", hm.menteeHandler.ListNotes)
			mentees.POST("/:id/notes", hm.menteeHandler.CreateNote)
			mentees.PUT("/:id/notes/:noteId", hm.menteeHandler.UpdateNote)
			mentees.DELETE("/:id/notes/:noteId", hm.menteeHandler.DeleteNote)
		}

		assets := v1.Group("/assets")
		{
			assets.GET("", hm.assetHandler.ListAssets)
			assets.GET("/name-available", hm.assetHandler.IsNameAvailable)
			assets.POST("/files", hm.assetHandler.UploadFile)
			assets.POST("/templates", hm.assetHandler.CreateTemplate)
			assets.GET("/:id", hm.assetHandler.GetAsset)
			assets.PUT("/:id", hm.assetHandler.UpdateAsset)
			assets.DELETE("/:id", hm.assetHandler.DeleteAsset)
			assets.GET("/:id/download", hm.assetHandler.DownloadAsset)
		}

		faqs := v1.Group("/faqs")
		{
			faqs.GET("", hm.faqHandler.ListFAQs)
			faqs.POST("", hm.faqHandler.CreateFAQ)
			faqs.GET("/:id", hm.faqHandler.GetFAQ)
			faqs.PUT("/:id", hm.faqHandler.UpdateFAQ)
			faqs.DELETE("/:id", hm.faqHandler.DeleteFAQ)
		}
	}
}
