package hooks

import (
	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

// ChatsList returns the caller's full ordered chat-list snapshot. Clients
// call this on connect and reconnect instead of expecting event replay.
func ChatsList(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		chats, err := roomsService.GetUserRooms(middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, chats)

	}
}

// ChatsInvitations returns the caller's open group invitations
func ChatsInvitations(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		invitations, err := roomsService.GetGroupInvitations(middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, invitations)

	}
}

// ChatsSearch finds group rooms by name substring
func ChatsSearch(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		groups, err := roomsService.SearchGroups(c.Query("name"))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, groups)

	}
}

// ChatsDetails returns the membership view of a group to one of its members
func ChatsDetails(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		details, err := roomsService.GetGroupDetails(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, details)

	}
}
