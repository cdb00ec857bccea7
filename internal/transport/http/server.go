package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"chatlibrary/internal/ai"
	appsvc "chatlibrary/internal/app"
	"chatlibrary/internal/bootstrap"
	"chatlibrary/internal/cache"
	"chatlibrary/internal/pkg/passhash"
	"chatlibrary/internal/platform/rabbitmq"
	"chatlibrary/internal/repository"
	"chatlibrary/internal/transport/http/handler"
	"chatlibrary/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	hasher := passhash.NewHasher(app.Config.Auth.BcryptCost)
	authService := appsvc.NewAuthService(
		userRepo,
		hasher,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	responder := ai.NewStubResponder(ai.ResponderConfig{
		ReplyPrefix: app.Config.AI.ReplyPrefix,
		ThinkDelay:  time.Duration(app.Config.AI.ThinkDelayMS) * time.Millisecond,
	})
	publisher := rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.MessageEventQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	chatService := appsvc.NewChatService(sessionRepo, messageRepo, responder, publisher, historyCache)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	chatGroup := v1.Group("/chats")
	chatGroup.Use(middleware.AuthIdentity(authService))
	chatGroup.POST("", chatHandler.CreateSession)
	chatGroup.GET("", chatHandler.ListSessions)
	chatGroup.POST("/:id/messages", chatHandler.PostMessage)
	chatGroup.GET("/:id/messages", chatHandler.ListMessages)

	return router
}
