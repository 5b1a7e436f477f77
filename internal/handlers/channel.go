package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/pipeline"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/telemetry"
)

// ChannelHandler manages channel endpoints.
type ChannelHandler struct {
	topology repositories.TopologyRepository
	pipeline *pipeline.Pipeline
	audit    *telemetry.Recorder
}

// NewChannelHandler builds a ChannelHandler.
func NewChannelHandler(topology repositories.TopologyRepository, pipe *pipeline.Pipeline, audit *telemetry.Recorder) *ChannelHandler {
	return &ChannelHandler{topology: topology, pipeline: pipe, audit: audit}
}

// CreateChannel creates a guild channel or a standalone one. Standalone
// creators become admin participants automatically.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req struct {
		Name       string  `json:"name" binding:"required"`
		GuildID    *int64  `json:"guild_id"`
		CategoryID *int64  `json:"category_id"`
		Topic      *string `json:"topic"`
		Type       string  `json:"type"`
		IsPrivate  bool    `json:"is_private"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type == "" {
		req.Type = "text"
	}

	userID := c.GetInt64("userID")
	channel, err := h.topology.CreateChannel(c.Request.Context(), repositories.CreateChannelParams{
		GuildID:    req.GuildID,
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Type:       req.Type,
		Topic:      req.Topic,
		IsPrivate:  req.IsPrivate,
		CreatorID:  userID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGuildNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not create channel"})
		return
	}

	c.JSON(http.StatusCreated, channel)
}

// RenameChannel renames a channel. Admins only.
func (h *ChannelHandler) RenameChannel(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, admin, ok := h.requireAdmin(c, channelID)
	if !ok {
		return
	}
	if !admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	if err := h.topology.RenameChannel(c.Request.Context(), channelID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not rename channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel_id": channelID, "name": req.Name})
}

// TogglePrivacy flips a channel between private and public. Flipping to
// private enrolls the creator as admin so the channel stays reachable.
func (h *ChannelHandler) TogglePrivacy(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	var req struct {
		IsPrivate *bool `json:"is_private" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, admin, ok := h.requireAdmin(c, channelID)
	if !ok {
		return
	}
	if !admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	channel, err := h.topology.TogglePrivacy(c.Request.Context(), channelID, *req.IsPrivate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update channel"})
		return
	}

	userID := c.GetInt64("userID")
	if h.audit != nil {
		cid := channelID
		h.audit.Record(c.Request.Context(), models.AuditLogEntry{
			ChannelID:  &cid,
			UserID:     userID,
			ActionType: "privacy_toggled",
			Details:    fmt.Sprintf("is_private=%t", *req.IsPrivate),
		})
	}

	c.JSON(http.StatusOK, channel)
}

// GetMessages returns channel history shaped for the caller.
func (h *ChannelHandler) GetMessages(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	views, err := h.pipeline.History(c.Request.Context(), channelID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repositories.ErrChannelNotFound):
			status = http.StatusNotFound
		case errors.Is(err, pipeline.ErrUnauthorized):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "could not load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// ListMembers lists the channel's members per its scope. The designated
// global channel additionally lists platform admins.
func (h *ChannelHandler) ListMembers(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	channel, err := h.topology.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return
	}

	members, err := h.topology.ListChannelMembers(c.Request.Context(), channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// JoinChannel enrolls the caller into a public standalone channel. Private
// channels are joined through invitations only.
func (h *ChannelHandler) JoinChannel(c *gin.Context) {
	channelID, ok := channelIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	channel, err := h.topology.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return
	}
	if channel.IsPrivate {
		c.JSON(http.StatusForbidden, gin.H{"error": "channel requires an invitation"})
		return
	}
	if channel.GuildID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild channels are joined through the guild"})
		return
	}

	if err := h.topology.AddParticipant(c.Request.Context(), channelID, userID, models.RoleMember); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel_id": channelID, "joined": true})
}

func (h *ChannelHandler) requireAdmin(c *gin.Context, channelID int64) (models.Channel, bool, bool) {
	channel, err := h.topology.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrChannelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "channel not found"})
		return models.Channel{}, false, false
	}

	userID := c.GetInt64("userID")
	admin, err := h.topology.IsChannelAdmin(c.Request.Context(), channel, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify role"})
		return models.Channel{}, false, false
	}
	return channel, admin, true
}

func channelIDParam(c *gin.Context) (int64, bool) {
	channelID, err := strconv.ParseInt(c.Param("channel_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return 0, false
	}
	return channelID, true
}
