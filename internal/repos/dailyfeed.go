package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type DailyFeedRepo interface {
  GetByUserAndDate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, feedDate string) (*types.DailyFeed, error)
  Upsert(ctx context.Context, tx *gorm.DB, feed *types.DailyFeed) error
  PurgeStale(ctx context.Context, tx *gorm.DB, userID uuid.UUID, keepDate string) error
}

type dailyFeedRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDailyFeedRepo(db *gorm.DB, baseLog *logger.Logger) DailyFeedRepo {
  repoLog := baseLog.With("repo", "DailyFeedRepo")
  return &dailyFeedRepo{db: db, log: repoLog}
}

func (r *dailyFeedRepo) GetByUserAndDate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, feedDate string) (*types.DailyFeed, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.DailyFeed
  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND feed_date = ?", userID, feedDate).
    Limit(1).
    Find(&results).Error; err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, nil
  }
  return results[0], nil
}

// Upsert writes the day's feed, resolving concurrent cache-miss writers by
// last-writer-wins on the (user_id, feed_date) key.
func (r *dailyFeedRepo) Upsert(ctx context.Context, tx *gorm.DB, feed *types.DailyFeed) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  feed.UpdatedAt = time.Now()
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "user_id"}, {Name: "feed_date"}},
      DoUpdates: clause.AssignmentColumns([]string{"candidate_ids", "updated_at"}),
    }).
    Create(feed).Error; err != nil {
    return err
  }
  return nil
}

func (r *dailyFeedRepo) PurgeStale(ctx context.Context, tx *gorm.DB, userID uuid.UUID, keepDate string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND feed_date <> ?", userID, keepDate).
    Delete(&types.DailyFeed{}).Error; err != nil {
    return err
  }
  return nil
}
