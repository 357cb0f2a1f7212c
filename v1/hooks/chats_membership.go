package hooks

import (
	"net/http"

	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

type ChatsMemberReq struct {
	Username string `json:"username"`
}

// ChatsInvite adds a pending invitation to a group (admin only)
func ChatsInvite(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req ChatsMemberReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := roomsService.InviteUser(c.Param("id"), middleware.Username(c), req.Username)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// ChatsRemove kicks a member or revokes a pending invitation (admin only)
func ChatsRemove(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req ChatsMemberReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := roomsService.RemoveUser(c.Param("id"), middleware.Username(c), req.Username)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// ChatsAccept accepts the caller's pending invitation to a group
func ChatsAccept(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		err := roomsService.AcceptInvitation(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// ChatsDecline declines the caller's pending invitation to a group
func ChatsDecline(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		err := roomsService.DeclineInvitation(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// ChatsLeave removes the caller from a group, handling admin succession and
// last-member cascade deletion
func ChatsLeave(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		err := roomsService.LeaveRoom(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}

// ChatsChangeAdmin hands group administration to another member (admin only)
func ChatsChangeAdmin(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req ChatsMemberReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := roomsService.ChangeAdmin(c.Param("id"), middleware.Username(c), req.Username)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, gin.H{})

	}
}
