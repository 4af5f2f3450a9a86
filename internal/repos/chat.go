package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type ChatRepo interface {
  Create(ctx context.Context, tx *gorm.DB, chats []*types.Chat) ([]*types.Chat, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, chatIDs []uuid.UUID) ([]*types.Chat, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error)
  GetByPair(ctx context.Context, tx *gorm.DB, userA, userB uuid.UUID) (*types.Chat, error)
  PartnerIDsOf(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
  ApplyLedgerUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, deltaA, deltaB float64) (*types.Chat, error)
  SetQuizzesForLevel(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, level int, quizA, quizB datatypes.JSON) (bool, error)
  MarkPartialReached(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, threshold float64) (bool, error)
  MarkRevealed(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, userID uuid.UUID, isUserA bool) error
}

type chatRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
  repoLog := baseLog.With("repo", "ChatRepo")
  return &chatRepo{db: db, log: repoLog}
}

func (r *chatRepo) Create(ctx context.Context, tx *gorm.DB, chats []*types.Chat) ([]*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(chats) == 0 {
    return []*types.Chat{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&chats).Error; err != nil {
    return nil, err
  }
  return chats, nil
}

func (r *chatRepo) GetByIDs(ctx context.Context, tx *gorm.DB, chatIDs []uuid.UUID) ([]*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Chat
  if len(chatIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", chatIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Chat
  if err := transaction.WithContext(ctx).
    Where("user_a_id = ? OR user_b_id = ?", userID, userID).
    Order("updated_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chatRepo) GetByPair(ctx context.Context, tx *gorm.DB, userA, userB uuid.UUID) (*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Chat
  if err := transaction.WithContext(ctx).
    Where("(user_a_id = ? AND user_b_id = ?) OR (user_a_id = ? AND user_b_id = ?)", userA, userB, userB, userA).
    Limit(1).
    Find(&results).Error; err != nil {
    return nil, err
  }
  if len(results) == 0 {
    return nil, nil
  }
  return results[0], nil
}

// PartnerIDsOf returns every user the given user already shares a chat with.
func (r *chatRepo) PartnerIDsOf(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  chats, err := r.GetByUserID(ctx, transaction, userID)
  if err != nil {
    return nil, err
  }
  partners := make([]uuid.UUID, 0, len(chats))
  for _, c := range chats {
    partners = append(partners, c.PartnerOf(userID))
  }
  return partners, nil
}

// ApplyLedgerUpdate bumps both progress counters and the message count in a
// single UPDATE expression. Both participants can send concurrently, so the
// arithmetic has to happen inside the database, never as read-then-write in
// application code. Returns the post-update row via RETURNING so callers see
// the authoritative counters; nil when the chat no longer exists.
func (r *chatRepo) ApplyLedgerUpdate(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, deltaA, deltaB float64) (*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var updated types.Chat
  result := transaction.WithContext(ctx).
    Model(&updated).
    Clauses(clause.Returning{}).
    Where("id = ?", chatID).
    Updates(map[string]interface{}{
      "progress_a":    gorm.Expr("progress_a + ?", deltaA),
      "progress_b":    gorm.Expr("progress_b + ?", deltaB),
      "message_count": gorm.Expr("message_count + 1"),
      "updated_at":    time.Now(),
    })
  if result.Error != nil {
    return nil, result.Error
  }
  if result.RowsAffected == 0 {
    return nil, nil
  }
  return &updated, nil
}

// SetQuizzesForLevel stores both quiz blobs and advances last_quiz_level in
// one guarded UPDATE. The level guard makes quiz generation at-most-once per
// milestone band; returns false when another writer got there first.
func (r *chatRepo) SetQuizzesForLevel(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, level int, quizA, quizB datatypes.JSON) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Chat{}).
    Where("id = ? AND last_quiz_level < ?", chatID, level).
    Updates(map[string]interface{}{
      "quiz_a":          quizA,
      "quiz_b":          quizB,
      "last_quiz_level": level,
      "updated_at":      time.Now(),
    })
  if result.Error != nil {
    return false, result.Error
  }
  return result.RowsAffected > 0, nil
}

// MarkPartialReached latches the partial tier once both progresses exceed
// the threshold. The check happens inside the UPDATE so the latch only ever
// flips forward; returns true when this call did the flip.
func (r *chatRepo) MarkPartialReached(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, threshold float64) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  result := transaction.WithContext(ctx).
    Model(&types.Chat{}).
    Where("id = ? AND partial_reached = ? AND progress_a > ? AND progress_b > ?", chatID, false, threshold, threshold).
    Updates(map[string]interface{}{
      "partial_reached": true,
      "updated_at":      time.Now(),
    })
  if result.Error != nil {
    return false, result.Error
  }
  return result.RowsAffected > 0, nil
}

// MarkRevealed flips the one-shot disclosure flag for the given participant.
func (r *chatRepo) MarkRevealed(ctx context.Context, tx *gorm.DB, chatID uuid.UUID, userID uuid.UUID, isUserA bool) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  column := "revealed_to_b"
  if isUserA {
    column = "revealed_to_a"
  }

  if err := transaction.WithContext(ctx).
    Model(&types.Chat{}).
    Where("id = ?", chatID).
    Updates(map[string]interface{}{
      column:       true,
      "updated_at": time.Now(),
    }).Error; err != nil {
    return err
  }
  return nil
}
