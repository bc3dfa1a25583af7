package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/beingkumara/placement-pitcher/internal/api/handlers"
	"github.com/beingkumara/placement-pitcher/internal/api/middleware"
	"github.com/beingkumara/placement-pitcher/internal/config"
	"github.com/beingkumara/placement-pitcher/internal/functions/ai"
	"github.com/beingkumara/placement-pitcher/internal/functions/extract"
	"github.com/beingkumara/placement-pitcher/internal/services"
	"gorm.io/gorm"
)

// SetupRouter wires the services and returns the Gin router plus the reply
// scheduler so the caller owns its lifecycle.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *services.ReplyScheduler) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOriginList(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Secret"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	jwtManager := middleware.NewJWTManager(cfg.JWTSecret, middleware.DefaultTokenExpiry)

	// Services
	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	locks := services.NewKeyedMutex()

	aiClient := ai.NewClient()
	aiClient.Configure(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.BaseURL)
	draftService := services.NewDraftService(db, aiClient, cfg.AI.Models, extract.NewPDFExtractor(), logService)

	transport := services.NewSMTPTransport(cfg.SMTP)
	mailerService := services.NewMailerService(db, transport, cfg.SMTP.From, locks, logService)

	dialer := services.NewIMAPMailboxDialer(cfg.IMAP)
	replyService := services.NewReplyService(db, dialer, locks, logService)

	userService := services.NewUserService(db, mailerService, logService, cfg.FrontendURL)
	contactService := services.NewContactService(db, mailerService, logService)
	importService := services.NewImportService(db, logService)
	settingsService := services.NewSettingsService(db)

	scheduler := services.NewReplyScheduler(replyService, time.Duration(cfg.PollIntervalSeconds)*time.Second)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, jwtManager, logService)
	userHandler := handlers.NewUserHandler(userService, cfg.AdminSecret)
	contactHandler := handlers.NewContactHandler(contactService, importService)
	mailHandler := handlers.NewMailHandler(draftService, mailerService, replyService, contactService, logService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, contactService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Public routes
		api.POST("/auth/login", authHandler.Login)
		api.POST("/setup-account", authHandler.SetupAccount)
		api.POST("/admin/create-core", userHandler.CreateCore)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(jwtManager))
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			contacts := protected.Group("/contacts")
			{
				contacts.GET("", contactHandler.List)
				contacts.POST("", contactHandler.Create)
				contacts.POST("/import", contactHandler.Import)
				contacts.GET("/:id", contactHandler.Get)
				contacts.PUT("/:id", contactHandler.Update)
				contacts.DELETE("/:id", contactHandler.Delete)
				contacts.POST("/:id/assign", contactHandler.Assign)
				contacts.POST("/:id/generate-email", mailHandler.GenerateDraft)
			}

			protected.POST("/send-email", mailHandler.SendEmail)
			protected.POST("/check-replies", mailHandler.CheckReplies)
			protected.GET("/sent-emails", mailHandler.SentMail)

			protected.GET("/users", userHandler.List)
			protected.POST("/users/invite", userHandler.Invite)

			protected.GET("/settings", settingsHandler.Get)
			protected.PUT("/settings", settingsHandler.Update)
			protected.GET("/stats", settingsHandler.Stats)
		}
	}

	return router, scheduler
}
