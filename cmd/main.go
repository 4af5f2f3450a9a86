package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/veilmatch/veilmatch-backend/internal/db"
  "github.com/veilmatch/veilmatch-backend/internal/handlers"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/middleware"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/server"
  "github.com/veilmatch/veilmatch-backend/internal/services"
  "github.com/veilmatch/veilmatch-backend/internal/sse"
  "github.com/veilmatch/veilmatch-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  chatRepo := repos.NewChatRepo(thePG, log)
  messageRepo := repos.NewMessageRepo(thePG, log)
  dailyFeedRepo := repos.NewDailyFeedRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)

  // When REDIS_ADDR is set, events fan out across instances through
  // redis pub/sub; otherwise the local hub is the only transport.
  var emitter services.SSEEmitter = &services.HubEmitter{Hub: sseHub}
  if os.Getenv("REDIS_ADDR") != "" {
    sseBus, busErr := services.NewRedisSSEBus(log)
    if busErr != nil {
      log.Error("Could not init redis SSE bus", "error", busErr)
      os.Exit(1)
    }
    defer sseBus.Close()
    if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
      log.Error("Could not start SSE forwarder", "error", err)
      os.Exit(1)
    }
    emitter = &services.RedisEmitter{Bus: sseBus}
  }
  notifier := services.NewChatNotifier(emitter)

  // Services
  log.Info("Setting up Services from main...")
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Error("Could not init BucketService", "error", err)
    os.Exit(1)
  }
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  avatarService, err := services.NewAvatarService(thePG, log, userRepo, bucketService, notifier)
  if err != nil {
    log.Error("Could not init AvatarService", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  userService := services.NewUserService(thePG, log, userRepo)
  ghostwallService := services.NewGhostwallService(log)
  scorerService := services.NewScorerService(log, openaiClient)
  quizGenService := services.NewQuizGenService(thePG, log, chatRepo, messageRepo, userRepo, openaiClient, notifier)
  chatService := services.NewChatService(thePG, log, chatRepo, messageRepo, userRepo, ghostwallService, scorerService, quizGenService, notifier)
  quizSessionService := services.NewQuizSessionService(thePG, log, chatRepo, notifier)
  feedService := services.NewFeedService(thePG, log, userRepo, chatRepo, dailyFeedRepo)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  userHandler := handlers.NewUserHandler(userService, avatarService)
  chatHandler := handlers.NewChatHandler(chatService)
  quizHandler := handlers.NewQuizHandler(quizSessionService)
  feedHandler := handlers.NewFeedHandler(feedService)
  sseHandler := handlers.NewSSEHandler(sseHub, chatRepo)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:    authHandler,
    AuthMiddleware: authMiddleware,
    UserHandler:    userHandler,
    ChatHandler:    chatHandler,
    QuizHandler:    quizHandler,
    FeedHandler:    feedHandler,
    SSEHandler:     sseHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
