package models

import "time"

// RoomInvitation is a pending group invitation. A username is never in both
// this table and RoomParticipant for the same room; the services keep the two
// sets disjoint.
type RoomInvitation struct {
	ID          uint64 `gorm:"primaryKey"`
	ChatRoomID  string `gorm:"index;uniqueIndex:idx_room_invitation"`
	Username    string `gorm:"index;uniqueIndex:idx_room_invitation"`
	CreatedDate time.Time
}
