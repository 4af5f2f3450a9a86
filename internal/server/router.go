package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/handlers"
  "github.com/veilmatch/veilmatch-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler    *handlers.AuthHandler
  AuthMiddleware *middleware.AuthMiddleware
  UserHandler    *handlers.UserHandler
  ChatHandler    *handlers.ChatHandler
  QuizHandler    *handlers.QuizHandler
  FeedHandler    *handlers.FeedHandler
  SSEHandler     *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/register", cfg.AuthHandler.Register)
  router.POST("/login", cfg.AuthHandler.Login)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // SSE
  protected.GET("/sse/stream", cfg.SSEHandler.Stream)
  protected.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  protected.PATCH("/user", cfg.UserHandler.UpdateProfile)
  protected.POST("/user/avatar", cfg.UserHandler.UploadAvatar)
  protected.PATCH("/user/avatar/mask", cfg.UserHandler.UpdateMask)
  // Feed
  protected.GET("/feed", cfg.FeedHandler.GetDailyFeed)
  // Chats
  protected.POST("/chats", cfg.ChatHandler.CreateChat)
  protected.GET("/chats", cfg.ChatHandler.ListChats)
  protected.GET("/chats/:chatID", cfg.ChatHandler.GetChat)
  protected.GET("/chats/:chatID/messages", cfg.ChatHandler.ListMessages)
  protected.POST("/chats/:chatID/messages", cfg.ChatHandler.SendMessage)
  // Milestone quizzes
  protected.POST("/chats/:chatID/quiz/start", cfg.QuizHandler.Start)
  protected.POST("/chats/:chatID/quiz/begin", cfg.QuizHandler.Begin)
  protected.POST("/chats/:chatID/quiz/answer", cfg.QuizHandler.Answer)
  protected.GET("/chats/:chatID/quiz", cfg.QuizHandler.State)
  protected.POST("/chats/:chatID/quiz/finish", cfg.QuizHandler.Finish)

  return router
}
