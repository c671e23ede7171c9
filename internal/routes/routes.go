package routes

import (
	"net/http"

	"chat-realtime-api/internal/auth"
	"chat-realtime-api/internal/handlers"
	"chat-realtime-api/internal/middleware"
	"chat-realtime-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Users    handlers.UserStore
	Messages handlers.MessageStore
	Tokens   *auth.TokenManager
	Hub      *realtime.Hub
	WS       handlers.WSConfig
	Log      *zap.Logger

	OriginAllowed  func(origin string) bool
	MetricsEnabled bool
}

func SetupRoutes(d Dependencies) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	originAllowed := d.OriginAllowed
	if originAllowed == nil {
		originAllowed = func(string) bool { return true }
	}
	ginRouter.Use(middleware.CORSMiddleware(originAllowed))

	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Log)
	userHandler := handlers.NewUserHandler(d.Users, d.Log)
	messageHandler := handlers.NewMessageHandler(d.Messages, d.Users, d.Log)
	wsCfg := d.WS
	wsCfg.OriginAllowed = originAllowed
	wsHandler := handlers.NewWSHandler(d.Hub, wsCfg, d.Log)

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": d.Hub.ConnectionCount(),
		})
	})
	if d.MetricsEnabled {
		ginRouter.GET("/metrics", gin.WrapH(d.Hub.Metrics().Handler()))
	}

	// Live channel; the token is optional, anonymous connections are allowed.
	ginRouter.GET("/ws", middleware.OptionalJWTMiddleware(d.Tokens), wsHandler.Serve)

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/auth/signup", authHandler.Signup)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware(d.Tokens))
	{
		protectedRoutes.GET("/auth/check", authHandler.Check)
		protectedRoutes.GET("/users", userHandler.GetUsers)
		protectedRoutes.GET("/presence", wsHandler.GetPresence)
		protectedRoutes.GET("/messages/:id", messageHandler.GetMessages)
		protectedRoutes.POST("/messages/send/:id", messageHandler.SendMessage)
	}

	return ginRouter
}
