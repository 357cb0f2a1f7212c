package services

import "github.com/exotech/urchat-api/models"

// RoomEvents is the push side of the system. Every mutation that changes what
// a connected client can see reports itself here; the implementation fans the
// change out to the affected private channels and room topics. Publishing is
// best-effort and must never fail the operation that triggered it.
type RoomEvents interface {

	// ChatListChanged recomputes and pushes the full ordered chat-list
	// snapshot for each named user
	ChatListChanged(usernames ...string)

	// MessageCreated announces a new message on the room's topic
	MessageCreated(chatID string, msg *models.Message)

	// MessageDeleted announces a permanent message removal on the room's topic
	MessageDeleted(chatID string, messageID uint64)

	// RoomDeleted announces a cascade deletion, both on the (now dead) room
	// topic and to the private channels of the former participants captured
	// before the deletion
	RoomDeleted(chatID string, formerParticipants []string)
}

// noopEvents lets services run without a broadcaster attached
type noopEvents struct{}

func (noopEvents) ChatListChanged(...string)              {}
func (noopEvents) MessageCreated(string, *models.Message) {}
func (noopEvents) MessageDeleted(string, uint64)          {}
func (noopEvents) RoomDeleted(string, []string)           {}

func events(e RoomEvents) RoomEvents {
	if e == nil {
		return noopEvents{}
	}
	return e
}
