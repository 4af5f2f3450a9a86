package services

import (
  "context"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

// ProfileUpdate carries the mutable profile fields; nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
  DisplayName *string    `json:"display_name"`
  RealName    *string    `json:"real_name"`
  Gender      *string    `json:"gender"`
  Birthdate   *time.Time `json:"birthdate"`
}

type UserService interface {
  GetMe(ctx context.Context, userID uuid.UUID) (*types.User, error)
  UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*types.User, error)
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
  serviceLog := log.With("service", "UserService")
  return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func (us *userService) GetMe(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  users, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(users) == 0 {
    return nil, apierr.NotFound("user not found")
  }
  return users[0], nil
}

func (us *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*types.User, error) {
  fields := map[string]interface{}{}

  if update.DisplayName != nil {
    name := strings.TrimSpace(*update.DisplayName)
    if name == "" {
      return nil, apierr.Validation("display name cannot be empty")
    }
    fields["display_name"] = name
  }
  if update.RealName != nil {
    fields["real_name"] = strings.TrimSpace(*update.RealName)
  }
  if update.Gender != nil {
    gender := strings.ToLower(strings.TrimSpace(*update.Gender))
    switch gender {
    case types.GenderMale, types.GenderFemale, "":
    default:
      return nil, apierr.Validation("unknown gender value")
    }
    fields["gender"] = gender
  }
  if update.Birthdate != nil {
    if update.Birthdate.After(time.Now()) {
      return nil, apierr.Validation("birthdate cannot be in the future")
    }
    fields["birthdate"] = *update.Birthdate
  }

  if len(fields) > 0 {
    if err := us.userRepo.UpdateFields(ctx, nil, userID, fields); err != nil {
      return nil, apierr.Persistence(err)
    }
  }
  return us.GetMe(ctx, userID)
}
