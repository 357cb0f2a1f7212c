package models

import "time"

// RoomParticipant is one row of the room membership relation. Membership is
// modeled as a relation table keyed by (room, username) rather than a
// mutually-referencing object graph, so existence checks are set lookups.
type RoomParticipant struct {
	ID         uint64 `gorm:"primaryKey"`
	ChatRoomID string `gorm:"index;uniqueIndex:idx_room_participant"`
	Username   string `gorm:"index;uniqueIndex:idx_room_participant"`
	JoinedDate time.Time
}
