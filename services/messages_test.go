package services

import (
	"sync"
	"testing"
	"time"

	"github.com/exotech/urchat-api/models"
	"github.com/stretchr/testify/require"
)

// stallingEvents blocks inside the first MessageCreated publish until
// released, to expose any window between commit and broadcast
type stallingEvents struct {
	noopEvents
	mu      sync.Mutex
	order   []uint64
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newStallingEvents() *stallingEvents {
	return &stallingEvents{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (e *stallingEvents) MessageCreated(_ string, msg *models.Message) {
	e.once.Do(func() {
		close(e.entered)
		<-e.release
	})
	e.mu.Lock()
	e.order = append(e.order, msg.ID)
	e.mu.Unlock()
}

func Test_SendMessage_UpdatesPreviewAtomically(t *testing.T) {
	req := require.New(t)
	rooms, messages, recorder, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	msg, err := messages.SendMessage("alice", direct.ID, "hey bob")
	req.NoError(err)
	req.NotZero(msg.ID)
	req.Equal("alice", msg.SenderUsername)

	var room models.ChatRoom
	req.NoError(db.Where("id = ?", direct.ID).First(&room).Error)
	req.Equal("hey bob", room.LastMessage)
	req.Equal(msg.CreatedDate.Unix(), room.LastActivity.Unix())

	// The broadcast reached both the room topic and every chat list
	req.Contains(recorder.createdMessages, msg.ID)
	req.Contains(recorder.chatLists, "alice")
	req.Contains(recorder.chatLists, "bob")
}

func Test_SendMessage_NonParticipantForbidden(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob", "mallory")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	_, err = messages.SendMessage("mallory", direct.ID, "let me in")
	req.ErrorIs(err, ErrForbidden)

	_, err = messages.SendMessage("alice", "missing-room", "hello?")
	req.ErrorIs(err, ErrNotFound)

	_, err = messages.SendMessage("alice", direct.ID, "")
	req.ErrorIs(err, ErrValidation)
}

func Test_SendMessage_BroadcastsInCommitOrder(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	stalling := newStallingEvents()
	messages.Events = stalling

	var (
		wg        sync.WaitGroup
		errFirst  error
		errSecond error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errFirst = messages.SendMessage("alice", direct.ID, "first")
	}()

	// Wait until the first send is committed and stalled inside its
	// broadcast, then race a second send against it
	<-stalling.entered
	go func() {
		defer wg.Done()
		_, errSecond = messages.SendMessage("bob", direct.ID, "second")
	}()

	time.Sleep(50 * time.Millisecond)
	close(stalling.release)
	wg.Wait()
	req.NoError(errFirst)
	req.NoError(errSecond)

	// The second send must not overtake the first one's broadcast
	stalling.mu.Lock()
	defer stalling.mu.Unlock()
	req.Len(stalling.order, 2)
	req.Less(stalling.order[0], stalling.order[1])
}

func Test_DeleteMessage_RestoresPreview(t *testing.T) {
	req := require.New(t)
	rooms, messages, recorder, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	first, err := messages.SendMessage("alice", direct.ID, "first")
	req.NoError(err)
	second, err := messages.SendMessage("alice", direct.ID, "second")
	req.NoError(err)

	// Deleting the newest message moves the preview back to its predecessor
	req.NoError(messages.DeleteMessage(second.ID, "alice"))
	var room models.ChatRoom
	req.NoError(db.Where("id = ?", direct.ID).First(&room).Error)
	req.Equal("first", room.LastMessage)
	req.Contains(recorder.deletedMessages, second.ID)

	// Deleting the last survivor resets the preview to the sentinel
	req.NoError(messages.DeleteMessage(first.ID, "alice"))
	req.NoError(db.Where("id = ?", direct.ID).First(&room).Error)
	req.Equal(models.NoMessagesYet, room.LastMessage)
}

func Test_DeleteMessage_SenderAndMembershipRequired(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob", "carol")
	chatID := makeGroup(t, rooms, "G", "alice", "bob", "carol")

	msg, err := messages.SendMessage("bob", chatID, "mine")
	req.NoError(err)

	// Not the sender
	err = messages.DeleteMessage(msg.ID, "carol")
	req.ErrorIs(err, ErrForbidden)

	// The sender loses the right once kicked out of the room
	req.NoError(rooms.RemoveUser(chatID, "alice", "bob"))
	err = messages.DeleteMessage(msg.ID, "bob")
	req.ErrorIs(err, ErrForbidden)

	err = messages.DeleteMessage(99999, "alice")
	req.ErrorIs(err, ErrNotFound)
}

func Test_GetMessages_RetentionFiltered(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	messages.Retention = 7 * 24 * time.Hour
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	ages := map[string]time.Duration{
		"one day":     24 * time.Hour,
		"six days":    6 * 24 * time.Hour,
		"eight days":  8 * 24 * time.Hour,
		"thirty days": 30 * 24 * time.Hour,
	}
	for content, age := range ages {
		msg, err := messages.SendMessage("alice", direct.ID, content)
		req.NoError(err)
		backdateMessage(t, db, msg.ID, age)
	}

	visible, err := messages.GetMessages(direct.ID, "bob")
	req.NoError(err)
	req.Len(visible, 2)

	// Oldest first, and only the messages inside the horizon
	req.Equal("six days", visible[0].Content)
	req.Equal("one day", visible[1].Content)

	_, err = messages.GetMessages(direct.ID, "mallory")
	req.ErrorIs(err, ErrForbidden)
}

func Test_GetMessagesPaged_WindowAndOrder(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	contents := []string{"m1", "m2", "m3", "m4", "m5"}
	for i, content := range contents {
		msg, err := messages.SendMessage("alice", direct.ID, content)
		req.NoError(err)
		// Space the messages out so recency ordering is unambiguous
		backdateMessage(t, db, msg.ID, time.Duration(len(contents)-i)*time.Minute)
	}

	// Page 0 holds the two newest, re-ordered oldest-first for display
	page, err := messages.GetMessagesPaged(direct.ID, 0, 2, "bob")
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("m4", page[0].Content)
	req.Equal("m5", page[1].Content)

	page, err = messages.GetMessagesPaged(direct.ID, 1, 2, "bob")
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("m2", page[0].Content)
	req.Equal("m3", page[1].Content)

	_, err = messages.GetMessagesPaged(direct.ID, -1, 2, "bob")
	req.ErrorIs(err, ErrValidation)
	_, err = messages.GetMessagesPaged(direct.ID, 0, 0, "bob")
	req.ErrorIs(err, ErrValidation)
}

func Test_GetMessageStats(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	messages.Retention = 7 * 24 * time.Hour
	seedUsers(t, db, "alice", "bob")

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	recent, err := messages.SendMessage("alice", direct.ID, "recent")
	req.NoError(err)
	backdateMessage(t, db, recent.ID, 24*time.Hour)
	old, err := messages.SendMessage("alice", direct.ID, "old")
	req.NoError(err)
	backdateMessage(t, db, old.ID, 10*24*time.Hour)

	stats, err := messages.GetMessageStats(direct.ID, "alice")
	req.NoError(err)
	req.EqualValues(2, stats.Total)
	req.EqualValues(1, stats.Recent)
	req.EqualValues(1, stats.Old)
}

func Test_CascadeDeleteRoom(t *testing.T) {
	req := require.New(t)
	rooms, messages, recorder, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob", "carol")
	chatID := makeGroup(t, rooms, "G", "alice", "bob", "carol")

	_, err := messages.SendMessage("alice", chatID, "soon gone")
	req.NoError(err)
	_, err = messages.SendMessage("bob", chatID, "same")
	req.NoError(err)

	req.NoError(messages.CascadeDeleteRoom(chatID))

	var roomCount int64
	req.NoError(db.Model(&models.ChatRoom{}).Where("id = ?", chatID).Count(&roomCount).Error)
	req.Zero(roomCount)
	var messageCount int64
	req.NoError(db.Model(&models.Message{}).Where("chat_room_id = ?", chatID).Count(&messageCount).Error)
	req.Zero(messageCount)
	var participantCount int64
	req.NoError(db.Model(&models.RoomParticipant{}).Where("chat_room_id = ?", chatID).Count(&participantCount).Error)
	req.Zero(participantCount)

	// The former participants, captured before deletion, got the event
	req.Equal([]string{"alice", "bob", "carol"}, recorder.roomDeletedRecipients(chatID))

	err = messages.CascadeDeleteRoom(chatID)
	req.ErrorIs(err, ErrNotFound)
}

func Test_SendMessage_SurvivesGatewayFailure(t *testing.T) {
	req := require.New(t)
	rooms, messages, _, db := newTestServices(t)
	seedUsers(t, db, "alice", "bob")
	messages.Notifications = &NotificationsService{Gateway: &recordingGateway{fail: true}}

	direct, err := rooms.GetOrCreateDirectRoom("alice", "bob")
	req.NoError(err)

	// A failing push gateway never fails the send itself
	msg, err := messages.SendMessage("alice", direct.ID, "still delivered")
	req.NoError(err)
	req.NotZero(msg.ID)
}
