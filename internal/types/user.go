package types

import (
  "time"
  "github.com/google/uuid"
)

type User struct {
  ID               uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Email            string      `gorm:"uniqueIndex;not null;column:email" json:"email"`
  Password         string      `gorm:"not null;column:password" json:"-"`
  DisplayName      string      `gorm:"not null;column:display_name" json:"display_name"`
  RealName         string      `gorm:"column:real_name" json:"-"`
  Gender           string      `gorm:"column:gender" json:"gender"`
  Birthdate        *time.Time  `gorm:"column:birthdate" json:"birthdate,omitempty"`
  AvatarBucketKey  string      `gorm:"column:avatar_bucket_key" json:"-"`
  AvatarURL        string      `gorm:"column:avatar_url" json:"-"`
  AvatarPartialURL string      `gorm:"column:avatar_partial_url" json:"-"`
  AvatarMaskedURL  string      `gorm:"column:avatar_masked_url" json:"-"`
  MaskPosX         float64     `gorm:"column:mask_pos_x;not null;default:0.5" json:"mask_pos_x"`
  MaskPosY         float64     `gorm:"column:mask_pos_y;not null;default:0.35" json:"mask_pos_y"`
  MaskScale        float64     `gorm:"column:mask_scale;not null;default:1.0" json:"mask_scale"`
  CreatedAt        time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt        time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
  return "user"
}

const (
  GenderMale   = "male"
  GenderFemale = "female"
)

// Age in whole years at the given time, or -1 when the birthdate is unknown.
func (u *User) AgeAt(now time.Time) int {
  if u.Birthdate == nil {
    return -1
  }
  years := now.Year() - u.Birthdate.Year()
  anniversary := u.Birthdate.AddDate(years, 0, 0)
  if anniversary.After(now) {
    years--
  }
  if years < 0 {
    return -1
  }
  return years
}
