package hooks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exotech/urchat-api/models"
	"github.com/exotech/urchat-api/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T) (*gin.Engine, *services.MessagesService, string) {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_busy_timeout=5000"),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.Silent),
		},
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
		&models.RoomParticipant{},
		&models.RoomInvitation{},
		&models.Message{},
	))
	for _, username := range []string{"alice", "bob"} {
		require.NoError(t, db.Create(&models.User{
			Username: username,
			FullName: username,
			JoinedAt: time.Now().UTC(),
		}).Error)
	}

	messagesService := &services.MessagesService{DB: db}
	roomsService := &services.RoomsService{DB: db, Messages: messagesService}
	room, err := roomsService.GetOrCreateDirectRoom("alice", "bob")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("username", "alice")
	})
	r.POST("/chats/:id/messages", MessagesSend(messagesService))
	r.GET("/chats/:id/messages", MessagesGet(messagesService))
	return r, messagesService, room.ID
}

func Test_MessagesGet_WireShapeMatchesSend(t *testing.T) {
	req := require.New(t)
	r, messagesService, chatID := testRouter(t)

	msg, err := messagesService.SendMessage("alice", chatID, "hello")
	req.NoError(err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats/"+chatID+"/messages", nil))
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Data, 1)

	// Same snake_case keys as the send response, no leaked model fields
	entry := body.Data[0]
	req.EqualValues(msg.ID, entry["message_id"])
	req.Equal(chatID, entry["chat_id"])
	req.Equal("alice", entry["sender"])
	req.Equal("hello", entry["content"])
	req.Contains(entry, "timestamp")
	req.NotContains(entry, "ChatRoom")
	req.NotContains(entry, "Content")
}

func Test_MessagesGet_PagedUsesSameShape(t *testing.T) {
	req := require.New(t)
	r, messagesService, chatID := testRouter(t)

	_, err := messagesService.SendMessage("alice", chatID, "one")
	req.NoError(err)
	_, err = messagesService.SendMessage("bob", chatID, "two")
	req.NoError(err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chats/"+chatID+"/messages?page=0&size=1", nil))
	req.Equal(http.StatusOK, w.Code)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Data, 1)
	req.Equal("two", body.Data[0]["content"])
	req.NotContains(body.Data[0], "SenderUsername")
}
