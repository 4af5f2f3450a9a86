package repos

import (
  "context"
  "testing"

  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

func mustTestLogger(t *testing.T) *logger.Logger {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  t.Cleanup(func() { log.Sync() })
  return log
}

func newTestDB(t *testing.T) *gorm.DB {
  t.Helper()
  db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  if err := db.AutoMigrate(&types.User{}, &types.UserToken{}, &types.Chat{}, &types.Message{}, &types.DailyFeed{}); err != nil {
    t.Fatalf("auto migrate: %v", err)
  }
  return db
}

func createTestUser(t *testing.T, db *gorm.DB, displayName string) *types.User {
  t.Helper()
  user := &types.User{
    ID:          uuid.New(),
    Email:       uuid.New().String() + "@example.com",
    Password:    "x",
    DisplayName: displayName,
  }
  if err := db.WithContext(context.Background()).Create(user).Error; err != nil {
    t.Fatalf("create user: %v", err)
  }
  return user
}

func createTestChat(t *testing.T, db *gorm.DB, userA, userB *types.User) *types.Chat {
  t.Helper()
  chat := &types.Chat{
    ID:      uuid.New(),
    UserAID: userA.ID,
    UserBID: userB.ID,
  }
  if err := db.WithContext(context.Background()).Create(chat).Error; err != nil {
    t.Fatalf("create chat: %v", err)
  }
  return chat
}
