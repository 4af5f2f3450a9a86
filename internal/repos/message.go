package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type MessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error)
  GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.Message, error)
  GetRecentByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.Message, error)
}

type messageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
  repoLog := baseLog.With("repo", "MessageRepo")
  return &messageRepo{db: db, log: repoLog}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(messages) == 0 {
    return []*types.Message{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&messages).Error; err != nil {
    return nil, err
  }
  return messages, nil
}

// GetByChatID returns messages in chronological order, oldest first.
// limit <= 0 returns the full transcript.
func (r *messageRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Message
  query := transaction.WithContext(ctx).
    Where("chat_id = ?", chatID).
    Order("created_at ASC, id ASC")
  if limit > 0 {
    query = query.Limit(limit)
  }
  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// GetRecentByChatID returns the newest limit messages, reordered oldest
// first so callers get a chronological excerpt.
func (r *messageRepo) GetRecentByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Message
  if limit <= 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("chat_id = ?", chatID).
    Order("created_at DESC, id DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }

  for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
    results[i], results[j] = results[j], results[i]
  }
  return results, nil
}
