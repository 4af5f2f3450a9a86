package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type UserRepo interface {
  Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
  GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.User, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error
  SampleEligible(ctx context.Context, tx *gorm.DB, exclude []uuid.UUID, gender string, bornAfter, bornBefore *time.Time, limit int) ([]*types.User, error)
}

type userRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
  repoLog := baseLog.With("repo", "UserRepo")
  return &userRepo{db: db, log: repoLog}
}

func (r *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(users) == 0 {
    return []*types.User{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
    return nil, err
  }
  return users, nil
}

func (r *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.User
  if len(userIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", userIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, emails []string) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.User
  if len(emails) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("email IN ?", emails).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *userRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(fields) == 0 {
    return nil
  }
  fields["updated_at"] = time.Now()

  if err := transaction.WithContext(ctx).
    Model(&types.User{}).
    Where("id = ?", userID).
    Updates(fields).Error; err != nil {
    return err
  }
  return nil
}

// SampleEligible pulls up to limit users in random order, excluding the given
// ids and optionally restricting gender and birthdate window. Empty gender /
// nil bounds skip the respective filter.
func (r *userRepo) SampleEligible(ctx context.Context, tx *gorm.DB, exclude []uuid.UUID, gender string, bornAfter, bornBefore *time.Time, limit int) ([]*types.User, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.User
  if limit <= 0 {
    return results, nil
  }

  query := transaction.WithContext(ctx).Model(&types.User{})
  if len(exclude) > 0 {
    query = query.Where("id NOT IN ?", exclude)
  }
  if gender != "" {
    query = query.Where("gender = ?", gender)
  }
  if bornAfter != nil {
    query = query.Where("birthdate >= ?", *bornAfter)
  }
  if bornBefore != nil {
    query = query.Where("birthdate <= ?", *bornBefore)
  }

  if err := query.
    Order("RANDOM()").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
