package types

import (
  "time"
  "github.com/google/uuid"
)

// Message rows are immutable once persisted.
type Message struct {
  ID        uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ChatID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"chat_id"`
  Chat      *Chat       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"chat,omitempty"`
  SenderID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"sender_id"`
  Content   string      `gorm:"column:content;not null" json:"content"`
  CreatedAt time.Time   `gorm:"not null;default:now();index" json:"created_at"`
}

func (Message) TableName() string {
  return "message"
}
