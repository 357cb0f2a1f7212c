package hooks

import (
	"net/http"

	"github.com/exotech/urchat-api/services"
	"github.com/exotech/urchat-api/v1/middleware"
	"github.com/gin-gonic/gin"
)

// ChatsGetTheme reads a room's theme settings
func ChatsGetTheme(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		theme, err := roomsService.GetTheme(c.Param("id"), middleware.Username(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, theme)

	}
}

// ChatsSetTheme updates a room's theme settings
func ChatsSetTheme(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req services.ChatTheme
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		theme, err := roomsService.SetTheme(c.Param("id"), middleware.Username(c), &req)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, theme)

	}
}

type ChatsPfpReq struct {
	PfpIndex string `json:"pfp_index"`
	PfpBg    string `json:"pfp_bg"`
}

// ChatsUpdatePfp changes a group room's avatar
func ChatsUpdatePfp(roomsService *services.RoomsService) gin.HandlerFunc {
	return func(c *gin.Context) {

		var req ChatsPfpReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := roomsService.UpdateGroupPfp(c.Param("id"), middleware.Username(c), req.PfpIndex, req.PfpBg)
		if err != nil {
			respondErr(c, err)
			return
		}

		respondOK(c, req)

	}
}
