package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// Chat is the per-pair progress ledger. ProgressA/ProgressB only ever grow,
// LastQuizLevel only ever grows, and QuizA/QuizB hold either zero or exactly
// five question records. QuizA tests A's knowledge of B and vice versa.
type Chat struct {
  ID            uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserAID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_chat_pair,unique" json:"user_a_id"`
  UserA         *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserAID;references:ID" json:"user_a,omitempty"`
  UserBID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_chat_pair,unique" json:"user_b_id"`
  UserB         *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserBID;references:ID" json:"user_b,omitempty"`
  ProgressA     float64         `gorm:"column:progress_a;not null;default:0" json:"progress_a"`
  ProgressB     float64         `gorm:"column:progress_b;not null;default:0" json:"progress_b"`
  LastQuizLevel int             `gorm:"column:last_quiz_level;not null;default:0" json:"last_quiz_level"`
  QuizA         datatypes.JSON  `gorm:"type:jsonb;column:quiz_a" json:"quiz_a"`
  QuizB         datatypes.JSON  `gorm:"type:jsonb;column:quiz_b" json:"quiz_b"`
  PartialReached bool           `gorm:"column:partial_reached;not null;default:false" json:"partial_reached"`
  RevealedToA   bool            `gorm:"column:revealed_to_a;not null;default:false" json:"revealed_to_a"`
  RevealedToB   bool            `gorm:"column:revealed_to_b;not null;default:false" json:"revealed_to_b"`
  MessageCount  int             `gorm:"column:message_count;not null;default:0" json:"message_count"`
  CreatedAt     time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt     time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chat) TableName() string {
  return "chat"
}

// HasParticipant reports whether userID is one of the two sides.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
  return c.UserAID == userID || c.UserBID == userID
}

// PartnerOf returns the other side of the chat.
func (c *Chat) PartnerOf(userID uuid.UUID) uuid.UUID {
  if c.UserAID == userID {
    return c.UserBID
  }
  return c.UserAID
}

// IsUserA reports whether userID occupies the A slot.
func (c *Chat) IsUserA(userID uuid.UUID) bool {
  return c.UserAID == userID
}

// QuizFor returns the raw quiz payload for the given participant.
func (c *Chat) QuizFor(userID uuid.UUID) datatypes.JSON {
  if c.IsUserA(userID) {
    return c.QuizA
  }
  return c.QuizB
}

// RevealedTo reports whether the partner's identity is fully disclosed to
// the given participant.
func (c *Chat) RevealedTo(userID uuid.UUID) bool {
  if c.IsUserA(userID) {
    return c.RevealedToA
  }
  return c.RevealedToB
}
