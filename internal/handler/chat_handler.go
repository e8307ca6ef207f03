package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"schoolhub/internal/middleware"
	"schoolhub/internal/modules"
	"schoolhub/internal/service"
	"schoolhub/internal/websocket"
	"schoolhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	chatService service.ChatService
	hub         *websocket.Hub
	secret      []byte
	auth        *middleware.Auth
}

func NewChatHandler(chatService service.ChatService, hub *websocket.Hub, secret []byte, auth *middleware.Auth) *ChatHandler {
	return &ChatHandler{chatService: chatService, hub: hub, secret: secret, auth: auth}
}

func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.ServeWs)

	groups := router.Group("/api/groups")
	groups.Use(h.auth.RequireAuth(), h.auth.RequireModule(modules.Groups), h.auth.RequireMethodPermission(string(modules.Groups)))
	{
		groups.GET("", h.ListGroups)
		groups.POST("", h.CreateGroup)
		groups.GET("/:id/members", h.ListMembers)
		groups.POST("/:id/members", h.AddMember)
		groups.DELETE("/:id/members/:userId", h.RemoveMember)
		groups.GET("/:id/messages", h.ListMessages)
		groups.POST("/:id/messages", h.PostMessage)
		groups.POST("/:id/read", h.MarkRead)
		groups.GET("/:id/mentions", h.SuggestMentions)
	}
}

// ServeWs upgrades to a websocket that receives events for the user's groups
// @Summary      Chat push channel
// @Tags         chat
// @Param        token  query  string  true  "Access token"
// @Success      101
// @Failure      401
// @Failure      403
// @Router       /ws [get]
func (h *ChatHandler) ServeWs(c *gin.Context) {
	websocket.ServeWs(h.hub, c, h.secret, h.socketGroups)
}

func (h *ChatHandler) socketGroups(ctx context.Context, userID, role string) ([]uuid.UUID, error) {
	enabled, err := h.auth.ModuleEnabled(ctx, role, modules.Groups)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("module '%s' is disabled for role %s: %w", modules.Groups, role, service.ErrForbidden)
	}
	return h.chatService.GroupIDs(ctx, userID)
}

// ListGroups returns the caller's groups with unread counts
// @Summary      List my groups
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.GroupSummary}
// @Router       /api/groups [get]
func (h *ChatHandler) ListGroups(c *gin.Context) {
	groups, err := h.chatService.ListGroups(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, groups))
}

// CreateGroup creates a group with the caller as first member
// @Summary      Create group
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateGroupRequest  true  "Group"
// @Success      201      {object}  response.Response{data=model.Group}
// @Failure      400      {object}  response.Response
// @Router       /api/groups [post]
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	group, err := h.chatService.CreateGroup(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, group))
}

func (h *ChatHandler) ListMembers(c *gin.Context) {
	members, err := h.chatService.ListMembers(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, members))
}

// @Summary      Add group member
// @Tags         chat
// @Security     BearerAuth
// @Param        id       path      string                    true  "Group ID"
// @Param        payload  body      service.AddMemberRequest  true  "Member"
// @Success      201      {object}  response.Response{data=model.GroupMember}
// @Router       /api/groups/{id}/members [post]
func (h *ChatHandler) AddMember(c *gin.Context) {
	var req service.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	m, err := h.chatService.AddMember(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, m))
}

func (h *ChatHandler) RemoveMember(c *gin.Context) {
	if err := h.chatService.RemoveMember(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("userId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Member removed", nil))
}

// ListMessages returns one page of messages, oldest first
// @Summary      List messages
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true   "Group ID"
// @Param        before  query     string  false  "RFC3339 timestamp; returns older messages"
// @Param        limit   query     int     false  "Page size (default 50, max 200)"
// @Success      200     {object}  response.Response{data=[]model.Message}
// @Router       /api/groups/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "before must be an RFC3339 timestamp"))
			return
		}
		before = &t
	}
	msgs, err := h.chatService.ListMessages(c.Request.Context(), middleware.UserID(c), c.Param("id"), before, queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, msgs))
}

// PostMessage stores a message and pushes it to the group's sockets
// @Summary      Post message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Group ID"
// @Param        payload  body      service.PostMessageRequest  true  "Message"
// @Success      201      {object}  response.Response{data=model.Message}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/groups/{id}/messages [post]
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req service.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.chatService.PostMessage(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, msg))
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.chatService.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithMessage(http.StatusOK, "Marked as read", nil))
}

// SuggestMentions
// @Summary      Mention autocomplete
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Group ID"
// @Param        q      query     string  false  "Text typed after @"
// @Param        limit  query     int     false  "Max suggestions (default 8)"
// @Success      200    {object}  response.Response{data=[]chat.Member}
// @Router       /api/groups/{id}/mentions [get]
func (h *ChatHandler) SuggestMentions(c *gin.Context) {
	members, err := h.chatService.SuggestMentions(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Query("q"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, members))
}
