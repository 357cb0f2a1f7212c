package v1

import (
	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/hooks"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

// Server is the API server instance
type Server struct {
	TokensService   *services.TokensService
	RoomsService    *services.RoomsService
	MessagesService *services.MessagesService
}

// Setup mounts the API server to the given group
func (s *Server) Setup(g *gin.RouterGroup) {

	// Register middleware for all routes
	g.Use(middleware.CheckAuth(s.TokensService))

	// Every operation on this surface acts on behalf of a verified user
	g.Use(middleware.RequireLogin())

	// Chat list, invitations, and search
	g.GET("/chats", hooks.ChatsList(s.RoomsService))
	g.GET("/chats/invitations", hooks.ChatsInvitations(s.RoomsService))
	g.GET("/chats/search", hooks.ChatsSearch(s.RoomsService))

	// Room creation
	g.POST("/chats/direct", hooks.ChatsCreateDirect(s.RoomsService))
	g.POST("/chats/group", hooks.ChatsCreateGroup(s.RoomsService))

	// Membership transitions
	g.POST("/chats/:id/invite", hooks.ChatsInvite(s.RoomsService))
	g.POST("/chats/:id/remove", hooks.ChatsRemove(s.RoomsService))
	g.POST("/chats/:id/accept", hooks.ChatsAccept(s.RoomsService))
	g.POST("/chats/:id/decline", hooks.ChatsDecline(s.RoomsService))
	g.POST("/chats/:id/leave", hooks.ChatsLeave(s.RoomsService))
	g.POST("/chats/:id/admin", hooks.ChatsChangeAdmin(s.RoomsService))

	// Room views and settings
	g.GET("/chats/:id", hooks.ChatsDetails(s.RoomsService))
	g.GET("/chats/:id/theme", hooks.ChatsGetTheme(s.RoomsService))
	g.POST("/chats/:id/theme", hooks.ChatsSetTheme(s.RoomsService))
	g.POST("/chats/:id/pfp", hooks.ChatsUpdatePfp(s.RoomsService))
	g.GET("/chats/:id/stats", hooks.MessagesStats(s.MessagesService))

	// Messages
	g.POST("/chats/:id/messages", hooks.MessagesSend(s.MessagesService))
	g.GET("/chats/:id/messages", hooks.MessagesGet(s.MessagesService))
	g.POST("/messages/:id/delete", hooks.MessagesDelete(s.MessagesService))

}
