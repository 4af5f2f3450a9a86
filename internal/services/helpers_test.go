package services

import (
  "testing"

  "github.com/veilmatch/veilmatch-backend/internal/logger"
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
