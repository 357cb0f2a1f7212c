package models

import "time"

// Message is a single chat message. Messages are immutable after creation;
// they only ever disappear, individually or with their room.
type Message struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ChatRoomID     string `gorm:"index"`
	ChatRoom       *ChatRoom
	SenderUsername string
	Content        string `gorm:"size:1000"`
	CreatedDate    time.Time
}
