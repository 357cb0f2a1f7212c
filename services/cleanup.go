package services

import (
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/exotech/urchat-api/models"
	"gorm.io/gorm"
)

// CleanupService runs the two periodic sweeps: empty-group deletion and
// message retention. Both act on a stale-state predicate, so running either
// twice (or concurrently on another instance) lands on the same end state;
// the in-process guards only avoid duplicate work, not incorrectness.
type CleanupService struct {
	DB       *gorm.DB
	Messages *MessagesService

	EmptyGroupInterval time.Duration
	RetentionInterval  time.Duration

	groupSweepRunning     atomic.Bool
	retentionSweepRunning atomic.Bool
	stop                  chan struct{}
}

// Start launches the sweep tickers in the background
func (s *CleanupService) Start() {
	if s.EmptyGroupInterval <= 0 {
		s.EmptyGroupInterval = time.Hour
	}
	if s.RetentionInterval <= 0 {
		s.RetentionInterval = 24 * time.Hour
	}
	s.stop = make(chan struct{})

	go s.runEvery(s.EmptyGroupInterval, func() {
		if _, err := s.EmptyGroupSweep(); err != nil {
			log.Printf("error: empty-group sweep: %v", err)
		}
	})
	go s.runEvery(s.RetentionInterval, func() {
		if _, err := s.MessageRetentionSweep(); err != nil {
			log.Printf("error: message retention sweep: %v", err)
		}
	})
}

// Stop halts the sweep tickers. Sweeps already in flight run to completion.
func (s *CleanupService) Stop() {
	if s.stop != nil {
		close(s.stop)
	}
}

func (s *CleanupService) runEvery(interval time.Duration, sweep func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-s.stop:
			return
		}
	}
}

// EmptyGroupSweep cascade-deletes every group room that has no participants
// left. It exists to catch races the leave path can miss. Returns the number
// of groups deleted.
func (s *CleanupService) EmptyGroupSweep() (int, error) {

	// Skip if the previous run is still going
	if !s.groupSweepRunning.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.groupSweepRunning.Store(false)

	var chatIDs []string
	err := s.DB.
		Model(&models.ChatRoom{}).
		Where("is_group = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM room_participants rp WHERE rp.chat_room_id = chat_rooms.id)").
		Pluck("id", &chatIDs).
		Error
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, chatID := range chatIDs {
		// One room failing must not abort the rest of the batch
		if err := s.Messages.CascadeDeleteRoom(chatID); err != nil {
			log.Printf("error: failed to delete empty group %s: %v", chatID, err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Printf("empty-group sweep deleted %d groups", deleted)
	}
	return deleted, nil
}

// MessageRetentionSweep deletes every message older than the retention
// horizon, then recomputes the cached preview of each room that lost
// messages. Returns the number of messages deleted.
func (s *CleanupService) MessageRetentionSweep() (int64, error) {

	if !s.retentionSweepRunning.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.retentionSweepRunning.Store(false)

	cutoff := time.Now().UTC().Add(-s.Messages.RetentionHorizon())

	// Capture which rooms will lose messages before deleting
	var chatIDs []string
	err := s.DB.
		Model(&models.Message{}).
		Distinct("chat_room_id").
		Where("created_date < ?", cutoff).
		Pluck("chat_room_id", &chatIDs).
		Error
	if err != nil {
		return 0, err
	}

	res := s.DB.Where("created_date < ?", cutoff).Delete(&models.Message{})
	if res.Error != nil {
		return 0, res.Error
	}

	for _, chatID := range chatIDs {
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if _, err := lockRoom(tx, chatID); err != nil {
				return err
			}
			return refreshRoomPreview(tx, chatID)
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			// NotFound means the room itself was deleted in the meantime
			log.Printf("error: failed to refresh preview for chat %s after retention sweep: %v", chatID, err)
		}
	}

	if res.RowsAffected > 0 {
		log.Printf("retention sweep deleted %d messages older than %s", res.RowsAffected, s.Messages.RetentionHorizon())
	}
	return res.RowsAffected, nil
}
