package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/exotech/urchat-api/models"
	"gorm.io/gorm"
)

// DefaultRetentionHorizon is the message retention policy used when no
// horizon was configured. Retrieval filtering and the retention sweep share
// whatever horizon is in effect, so the two can never drift apart.
const DefaultRetentionHorizon = 30 * 24 * time.Hour

// MessageStats summarizes a room's history against the retention horizon
type MessageStats struct {
	Total  int64 `json:"total"`
	Recent int64 `json:"recent"`
	Old    int64 `json:"old"`
}

// MessagesService manages the message lifecycle: send, delete, retrieval
// within the retention horizon, and cascade deletion of a room together with
// its history
type MessagesService struct {
	DB            *gorm.DB
	Events        RoomEvents
	Notifications *NotificationsService

	// Retention is the maximum message age served and kept. Zero means
	// DefaultRetentionHorizon.
	Retention time.Duration

	// publishMu holds one mutex per room so commit and broadcast happen as
	// one ordered unit; see roomPublishLock
	publishMu sync.Map
}

// roomPublishLock returns the room's publish mutex. The row lock inside the
// transaction serializes commits, but it is released before the broadcast
// runs, so without this lock a later commit could broadcast first. Holding
// it from before the transaction until after the publish keeps the topic
// stream in commit order.
func (s *MessagesService) roomPublishLock(chatID string) *sync.Mutex {
	mu, _ := s.publishMu.LoadOrStore(chatID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// RetentionHorizon returns the effective retention policy
func (s *MessagesService) RetentionHorizon() time.Duration {
	if s.Retention <= 0 {
		return DefaultRetentionHorizon
	}
	return s.Retention
}

func (s *MessagesService) retentionCutoff() time.Time {
	return time.Now().UTC().Add(-s.RetentionHorizon())
}

// SendMessage persists a new message and moves the room's cached preview to
// it, as one atomic unit. The sender must be a current participant.
func (s *MessagesService) SendMessage(senderUsername, chatID, content string) (*models.Message, error) {

	if content == "" {
		return nil, errValidation("message content is empty")
	}

	mu := s.roomPublishLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	var (
		msg          *models.Message
		room         *models.ChatRoom
		participants []string
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		room, err = lockRoom(tx, chatID)
		if err != nil {
			return err
		}

		member, err := isParticipant(tx, chatID, senderUsername)
		if err != nil {
			return err
		}
		if !member {
			return errForbidden("you cannot message in this chat")
		}

		participants, err = participantUsernames(tx, chatID)
		if err != nil {
			return err
		}

		msg = &models.Message{
			ChatRoomID:     chatID,
			SenderUsername: senderUsername,
			Content:        content,
			CreatedDate:    time.Now().UTC(),
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		// The message and the preview commit together; neither is ever
		// visible without the other
		return tx.
			Model(&models.ChatRoom{}).
			Where("id = ?", chatID).
			Updates(map[string]interface{}{
				"last_message":  msg.Content,
				"last_activity": msg.CreatedDate,
			}).
			Error
	})
	if err != nil {
		return nil, err
	}

	displayName := room.DisplayName(senderUsername, participants)
	s.Notifications.NotifyNewMessage(chatID, senderUsername, content, displayName, room.IsGroup)

	events(s.Events).MessageCreated(chatID, msg)
	events(s.Events).ChatListChanged(participants...)
	return msg, nil
}

// DeleteMessage permanently removes a message. Only its sender may delete it,
// and only while still a participant of the room. If the deleted message was
// the cached preview, the preview falls back to the newest survivor.
func (s *MessagesService) DeleteMessage(messageID uint64, requesterUsername string) error {

	// Resolve the room first so its publish lock can span commit and
	// broadcast, same as on the send path
	var target models.Message
	err := s.DB.Select("id", "chat_room_id").Where("id = ?", messageID).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("message %d not found", messageID)
		}
		return err
	}
	mu := s.roomPublishLock(target.ChatRoomID)
	mu.Lock()
	defer mu.Unlock()

	var (
		chatID       string
		participants []string
	)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.Where("id = ?", messageID).First(&msg).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errNotFound("message %d not found", messageID)
			}
			return err
		}
		chatID = msg.ChatRoomID

		if _, err := lockRoom(tx, chatID); err != nil {
			return err
		}
		if msg.SenderUsername != requesterUsername {
			return errForbidden("you can only delete your own messages")
		}
		member, err := isParticipant(tx, chatID, requesterUsername)
		if err != nil {
			return err
		}
		if !member {
			return errForbidden("access denied to this chat")
		}

		participants, err = participantUsernames(tx, chatID)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Message{}, msg.ID).Error; err != nil {
			return err
		}
		return refreshRoomPreview(tx, chatID)
	})
	if err != nil {
		return err
	}

	events(s.Events).MessageDeleted(chatID, messageID)
	events(s.Events).ChatListChanged(participants...)
	return nil
}

// GetMessages returns a room's full history within the retention horizon,
// oldest first. The requester must be a current participant.
func (s *MessagesService) GetMessages(chatID, requesterUsername string) ([]*models.Message, error) {

	if err := s.requireParticipant(chatID, requesterUsername); err != nil {
		return nil, err
	}

	var messages []*models.Message
	err := s.DB.
		Where("chat_room_id = ?", chatID).
		Where("created_date > ?", s.retentionCutoff()).
		Order("created_date ASC, id ASC").
		Find(&messages).
		Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessagesPaged returns one page of a room's history. The page window is
// taken newest-first, then re-ordered oldest-first for display.
func (s *MessagesService) GetMessagesPaged(chatID string, page, size int, requesterUsername string) ([]*models.Message, error) {

	if page < 0 || size <= 0 {
		return nil, errValidation("invalid page window")
	}
	if err := s.requireParticipant(chatID, requesterUsername); err != nil {
		return nil, err
	}

	var messages []*models.Message
	err := s.DB.
		Where("chat_room_id = ?", chatID).
		Where("created_date > ?", s.retentionCutoff()).
		Order("created_date DESC, id DESC").
		Offset(page * size).
		Limit(size).
		Find(&messages).
		Error
	if err != nil {
		return nil, err
	}

	// Reverse into display order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessageStats reports how much of a room's history is inside and outside
// the retention horizon
func (s *MessagesService) GetMessageStats(chatID, requesterUsername string) (*MessageStats, error) {

	if err := s.requireParticipant(chatID, requesterUsername); err != nil {
		return nil, err
	}

	var stats MessageStats
	err := s.DB.
		Model(&models.Message{}).
		Where("chat_room_id = ?", chatID).
		Count(&stats.Total).
		Error
	if err != nil {
		return nil, err
	}
	err = s.DB.
		Model(&models.Message{}).
		Where("chat_room_id = ?", chatID).
		Where("created_date > ?", s.retentionCutoff()).
		Count(&stats.Recent).
		Error
	if err != nil {
		return nil, err
	}
	stats.Old = stats.Total - stats.Recent
	return &stats, nil
}

func (s *MessagesService) requireParticipant(chatID, username string) error {
	var count int64
	err := s.DB.
		Model(&models.ChatRoom{}).
		Where("id = ?", chatID).
		Count(&count).
		Error
	if err != nil {
		return err
	}
	if count == 0 {
		return errNotFound("chat room %s not found", chatID)
	}

	member, err := isParticipant(s.DB, chatID, username)
	if err != nil {
		return err
	}
	if !member {
		return errForbidden("access denied to this chat")
	}
	return nil
}

// CascadeDeleteRoom deletes a room together with all of its messages and
// membership rows, verifies the deletion actually completed, and announces the
// deletion to the former participants.
func (s *MessagesService) CascadeDeleteRoom(chatID string) error {

	// Capture the recipient list before the rows disappear
	former, err := participantUsernames(s.DB, chatID)
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, chatID); err != nil {
			return err
		}
		return s.cascadeDeleteRoom(tx, chatID)
	})
	if err != nil {
		return err
	}
	return s.finishCascade(chatID, former)
}

// cascadeDeleteRoom removes the room and everything hanging off it, inside
// the caller's transaction
func (s *MessagesService) cascadeDeleteRoom(tx *gorm.DB, chatID string) error {
	err := tx.Where("chat_room_id = ?", chatID).Delete(&models.Message{}).Error
	if err != nil {
		return err
	}
	err = tx.Where("chat_room_id = ?", chatID).Delete(&models.RoomParticipant{}).Error
	if err != nil {
		return err
	}
	err = tx.Where("chat_room_id = ?", chatID).Delete(&models.RoomInvitation{}).Error
	if err != nil {
		return err
	}
	return tx.Where("id = ?", chatID).Delete(&models.ChatRoom{}).Error
}

// finishCascade verifies a committed cascade deletion and broadcasts it.
// A failed verification means a concurrent write won a race against the
// deletion; that is an integrity violation, never silently accepted.
func (s *MessagesService) finishCascade(chatID string, formerParticipants []string) error {

	var roomCount int64
	err := s.DB.
		Model(&models.ChatRoom{}).
		Where("id = ?", chatID).
		Count(&roomCount).
		Error
	if err != nil {
		return err
	}
	var messageCount int64
	err = s.DB.
		Model(&models.Message{}).
		Where("chat_room_id = ?", chatID).
		Count(&messageCount).
		Error
	if err != nil {
		return err
	}
	if roomCount != 0 || messageCount != 0 {
		log.Printf(
			"error: cascade deletion of chat %s failed verification: room rows %d, message rows %d",
			chatID, roomCount, messageCount,
		)
		return errIntegrity("cascade deletion of chat %s failed verification", chatID)
	}

	events(s.Events).RoomDeleted(chatID, formerParticipants)
	events(s.Events).ChatListChanged(formerParticipants...)
	return nil
}
