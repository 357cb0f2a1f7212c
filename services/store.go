package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/exotech/urchat-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func nullString(s string) sql.NullString {
	return sql.NullString{Valid: true, String: s}
}

// Shared room-store queries used by both the membership and message services.
// Everything that mutates a room goes through lockRoom first so that
// concurrent operations on the same room serialize at the row.

// lockRoom loads a room inside tx with a row lock where the dialect supports
// one. sqlite has no row locks; there the transaction itself serializes
// writers.
func lockRoom(tx *gorm.DB, chatID string) (*models.ChatRoom, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room models.ChatRoom
	err := q.Where("id = ?", chatID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("chat room %s not found", chatID)
		}
		return nil, err
	}
	return &room, nil
}

// isParticipant reports whether username is currently a member of the room
func isParticipant(tx *gorm.DB, chatID, username string) (bool, error) {
	var count int64
	err := tx.
		Model(&models.RoomParticipant{}).
		Where("chat_room_id = ?", chatID).
		Where("username = ?", username).
		Count(&count).
		Error
	return count > 0, err
}

// hasPendingInvitation reports whether username has an open invitation to the room
func hasPendingInvitation(tx *gorm.DB, chatID, username string) (bool, error) {
	var count int64
	err := tx.
		Model(&models.RoomInvitation{}).
		Where("chat_room_id = ?", chatID).
		Where("username = ?", username).
		Count(&count).
		Error
	return count > 0, err
}

// participantUsernames lists the current members of a room, ordered by
// username so that every caller observes the same order
func participantUsernames(tx *gorm.DB, chatID string) ([]string, error) {
	var usernames []string
	err := tx.
		Model(&models.RoomParticipant{}).
		Where("chat_room_id = ?", chatID).
		Order("username ASC").
		Pluck("username", &usernames).
		Error
	return usernames, err
}

// findUser resolves a username against the identity subsystem's user table
func findUser(tx *gorm.DB, username string) (*models.User, error) {
	var user models.User
	err := tx.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("user %s not found", username)
		}
		return nil, err
	}
	return &user, nil
}

// refreshRoomPreview recomputes the room's cached lastMessage/lastActivity
// from the newest surviving message, falling back to the no-messages sentinel
// with the current time. Runs inside the caller's transaction.
func refreshRoomPreview(tx *gorm.DB, chatID string) error {
	var last models.Message
	err := tx.
		Where("chat_room_id = ?", chatID).
		Order("created_date DESC, id DESC").
		First(&last).
		Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	updates := map[string]interface{}{
		"last_message":  models.NoMessagesYet,
		"last_activity": time.Now().UTC(),
	}
	if err == nil {
		updates["last_message"] = last.Content
		updates["last_activity"] = last.CreatedDate
	}
	return tx.
		Model(&models.ChatRoom{}).
		Where("id = ?", chatID).
		Updates(updates).
		Error
}
