package hooks

import (
	"net/http"

	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

type ChatsCreateDirectReq struct {
	Username string `json:"username"`
}

// ChatsCreateDirect opens (or returns) the direct room between the caller and
// another user
func ChatsCreateDirect(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		// Get the request body
		var req ChatsCreateDirectReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Get or create the room for the pair
		room, err := roomsService.GetOrCreateDirectRoom(middleware.Username(c), req.Username)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{
			"chat_id":       room.ID,
			"is_group":      room.IsGroup,
			"last_message":  room.LastMessage,
			"last_activity": room.LastActivity,
		})

	}
}

type ChatsCreateGroupReq struct {
	Name     string   `json:"name"`
	Invitees []string `json:"invitees"`
}

// ChatsCreateGroup creates a group room with the caller as admin and the
// invitees as pending invitations
func ChatsCreateGroup(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		// Get the request body
		var req ChatsCreateGroupReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Create the group
		details, err := roomsService.CreateGroup(req.Name, middleware.Username(c), req.Invitees)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, details)

	}
}
