package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/exotech/urchat-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens a fresh in-memory database for one test
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomParticipant{},
		&models.RoomInvitation{},
		&models.Message{},
	))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		user := models.User{
			Username: username,
			FullName: username,
			PfpIndex: "😊",
			PfpBg:    "#4CAF50",
			JoinedAt: time.Now().UTC(),
		}
		require.NoError(t, db.Create(&user).Error)
	}
}

// eventRecorder captures broadcaster calls for assertions
type eventRecorder struct {
	mu              sync.Mutex
	chatLists       []string
	createdMessages []uint64
	deletedMessages []uint64
	deletedRooms    map[string][]string
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{deletedRooms: map[string][]string{}}
}

func (r *eventRecorder) ChatListChanged(usernames ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatLists = append(r.chatLists, usernames...)
}

func (r *eventRecorder) MessageCreated(_ string, msg *models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createdMessages = append(r.createdMessages, msg.ID)
}

func (r *eventRecorder) MessageDeleted(_ string, messageID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedMessages = append(r.deletedMessages, messageID)
}

func (r *eventRecorder) RoomDeleted(chatID string, formerParticipants []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletedRooms[chatID] = formerParticipants
}

func (r *eventRecorder) roomDeletedRecipients(chatID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deletedRooms[chatID]
}

// recordingGateway captures push-gateway calls
type recordingGateway struct {
	mu          sync.Mutex
	messages    []string
	invitations []string
	fail        bool
}

func (g *recordingGateway) NotifyNewMessage(chatID, sender, content, displayName string, isGroup bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return fmt.Errorf("gateway unavailable")
	}
	g.messages = append(g.messages, content)
	return nil
}

func (g *recordingGateway) NotifyGroupInvitation(groupName string, usernames []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return fmt.Errorf("gateway unavailable")
	}
	g.invitations = append(g.invitations, usernames...)
	return nil
}

// newTestServices wires a rooms+messages pair against a fresh database
func newTestServices(t *testing.T) (*RoomsService, *MessagesService, *eventRecorder, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	recorder := newEventRecorder()
	messages := &MessagesService{
		DB:            db,
		Events:        recorder,
		Notifications: &NotificationsService{Gateway: &recordingGateway{}},
	}
	rooms := &RoomsService{
		DB:            db,
		Events:        recorder,
		Notifications: &NotificationsService{Gateway: &recordingGateway{}},
		Messages:      messages,
	}
	return rooms, messages, recorder, db
}

// makeGroup creates a group and accepts every invitee into membership
func makeGroup(t *testing.T, rooms *RoomsService, name, admin string, members ...string) string {
	t.Helper()
	details, err := rooms.CreateGroup(name, admin, members)
	require.NoError(t, err)
	for _, member := range members {
		require.NoError(t, rooms.AcceptInvitation(details.ChatID, member))
	}
	return details.ChatID
}

// backdateMessage rewrites a message's creation time
func backdateMessage(t *testing.T, db *gorm.DB, messageID uint64, age time.Duration) {
	t.Helper()
	err := db.
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("created_date", time.Now().UTC().Add(-age)).
		Error
	require.NoError(t, err)
}
