package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// DailyFeed memoizes one day's candidate list for a user. One row per
// (user, date); rows for other dates are purged on write.
type DailyFeed struct {
  ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_feed_user_date,unique" json:"user_id"`
  User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  FeedDate     string         `gorm:"column:feed_date;not null;index:idx_feed_user_date,unique" json:"feed_date"`
  CandidateIDs datatypes.JSON `gorm:"type:jsonb;column:candidate_ids" json:"candidate_ids"`
  CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailyFeed) TableName() string {
  return "daily_feed"
}

// FeedDateFormat is the layout for DailyFeed.FeedDate keys.
const FeedDateFormat = "2006-01-02"

func FeedDateOf(t time.Time) string {
  return t.UTC().Format(FeedDateFormat)
}
