package hooks

import (
	"net/http"
	"strconv"

	"github.com/exotech/urchat-api/models"
	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

type MessagesSendReq struct {
	Content string `json:"content"`
}

// messageView is the wire shape of one message, shared by the send response
// and the history endpoints so clients see one format everywhere
func messageView(msg *models.Message) gin.H {
	return gin.H{
		"message_id": msg.ID,
		"chat_id":    msg.ChatRoomID,
		"sender":     msg.SenderUsername,
		"content":    msg.Content,
		"timestamp":  msg.CreatedDate,
	}
}

func messageViews(messages []*models.Message) []gin.H {
	views := make([]gin.H, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView(msg))
	}
	return views
}

// MessagesSend posts a new message to a room
func MessagesSend(messagesService *services.MessagesService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req MessagesSendReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg, err := messagesService.SendMessage(middleware.Username(c), c.Param("id"), req.Content)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, messageView(msg))

	}
}

// MessagesGet returns one page of a room's history, oldest first. Without
// page parameters it returns the full retained history.
func MessagesGet(messagesService *services.MessagesService) gin.HandlerFunc {
	return func(c *gin.Context) {

		username := middleware.Username(c)
		chatID := c.Param("id")

		// Paged when a size is given, full retained history otherwise
		if sizeStr := c.Query("size"); sizeStr != "" {
			page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
			size, err := strconv.Atoi(sizeStr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
				return
			}
			messages, err := messagesService.GetMessagesPaged(chatID, page, size, username)
			if err != nil {
				respondErr(c, err)
				return
			}
			respondOK(c, messageViews(messages))
			return
		}

		messages, err := messagesService.GetMessages(chatID, username)
		if err != nil {
			respondErr(c, err)
			return
		}
		respondOK(c, messageViews(messages))

	}
}

// MessagesDelete permanently removes one of the caller's own messages
func MessagesDelete(messagesService *services.MessagesService) gin.HandlerFunc {
	return func(c *gin.Context) {

		messageID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}

		if err := messagesService.DeleteMessage(messageID, middleware.Username(c)); err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// MessagesStats reports a room's history size against the retention horizon
func MessagesStats(messagesService *services.MessagesService) gin.HandlerFunc {
	return func(c *gin.Context) {

		stats, err := messagesService.GetMessageStats(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, stats)

	}
}
