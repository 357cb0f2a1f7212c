package models

import (
	"database/sql"
	"time"
)

// NoMessagesYet is the cached preview value for a room with no surviving messages
const NoMessagesYet = "No messages yet"

// ChatRoom represents a single chat room, either a two-person direct room or
// a group with an admin and an invitation workflow
type ChatRoom struct {
	ID      string `gorm:"primaryKey"`
	IsGroup bool
	Name    string

	// AdminUsername is set for group rooms only. While a group has
	// participants, the admin is always one of them.
	AdminUsername sql.NullString

	// PairKey is the canonical unordered participant pair for direct rooms.
	// Its unique index is what makes concurrent GetOrCreateDirectRoom calls
	// for the same pair produce exactly one room.
	PairKey sql.NullString `gorm:"uniqueIndex"`

	// Cached preview of the newest non-deleted message
	LastMessage  string
	LastActivity time.Time

	ThemeIndex  int
	IsDarkTheme bool
	PfpIndex    string
	PfpBg       string

	CreatedDate time.Time
}

// DisplayName resolves the room title as seen by one participant. Groups show
// their own name; direct rooms show the other participant.
func (r *ChatRoom) DisplayName(viewer string, participants []string) string {
	if r.IsGroup {
		if r.Name != "" {
			return r.Name
		}
		if r.AdminUsername.Valid {
			return r.AdminUsername.String + "'s Group"
		}
		return "Group"
	}
	for _, username := range participants {
		if username != viewer {
			return username
		}
	}
	return "Unknown"
}
