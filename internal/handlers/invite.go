package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/snowflake"
)

// InviteHandler manages DM and group invitations. Invite ids are snowflakes
// so they sort by creation time.
type InviteHandler struct {
	invites   repositories.InvitationRepository
	topology  repositories.TopologyRepository
	allocator *snowflake.Allocator
}

// NewInviteHandler builds an InviteHandler.
func NewInviteHandler(invites repositories.InvitationRepository, topology repositories.TopologyRepository, allocator *snowflake.Allocator) *InviteHandler {
	return &InviteHandler{invites: invites, topology: topology, allocator: allocator}
}

// CreateInvite issues a pending invitation to another user.
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	var req struct {
		TargetUserID    int64             `json:"target_user_id" binding:"required"`
		Type            models.InviteType `json:"type" binding:"required"`
		TargetChannelID *int64            `json:"target_channel_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invite type"})
		return
	}
	if req.Type == models.InviteGroup && req.TargetChannelID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group invites require a target channel"})
		return
	}

	userID := c.GetInt64("userID")
	if userID == req.TargetUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot invite yourself"})
		return
	}

	if req.TargetChannelID != nil {
		if _, err := h.topology.GetChannel(c.Request.Context(), *req.TargetChannelID); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, repositories.ErrChannelNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": "channel not found"})
			return
		}
	}

	inviteID, err := h.allocator.NextID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not allocate invite id"})
		return
	}

	invite := models.Invitation{
		InviteID:        inviteID,
		SenderID:        userID,
		TargetUserID:    req.TargetUserID,
		TargetChannelID: req.TargetChannelID,
		Type:            req.Type,
		Status:          models.InviteStatusPending,
	}
	if err := h.invites.CreateInvitation(c.Request.Context(), invite); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create invitation"})
		return
	}

	c.JSON(http.StatusCreated, invite)
}

// ListPending returns the invitations awaiting the caller's decision.
func (h *InviteHandler) ListPending(c *gin.Context) {
	userID := c.GetInt64("userID")

	invites, err := h.invites.ListPendingForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invitations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": invites})
}

// HandleInvite resolves an invitation. Accepting a DM invite opens the
// direct channel; accepting a group invite enrolls the target into the
// channel or its guild.
func (h *InviteHandler) HandleInvite(c *gin.Context) {
	var req struct {
		InviteID int64 `json:"invite_id,string" binding:"required"`
		Accept   *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	invite, err := h.invites.GetInvitation(c.Request.Context(), req.InviteID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrInviteNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "invitation not found"})
		return
	}
	if invite.TargetUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the invitation target"})
		return
	}
	if invite.Status != models.InviteStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "invitation already handled"})
		return
	}

	if !*req.Accept {
		if err := h.invites.UpdateStatus(c.Request.Context(), invite.InviteID, models.InviteStatusDeclined); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update invitation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.InviteStatusDeclined})
		return
	}

	var channelID int64
	switch invite.Type {
	case models.InviteDM:
		channel, err := h.topology.GetOrCreateDM(c.Request.Context(), invite.SenderID, invite.TargetUserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open dm"})
			return
		}
		channelID = channel.ID
	case models.InviteGroup:
		channel, err := h.topology.GetChannel(c.Request.Context(), *invite.TargetChannelID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "channel no longer exists"})
			return
		}
		if channel.GuildID != nil {
			err = h.topology.AddGuildMember(c.Request.Context(), *channel.GuildID, userID)
		} else {
			err = h.topology.AddParticipant(c.Request.Context(), channel.ID, userID, models.RoleMember)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enroll member"})
			return
		}
		channelID = channel.ID
	}

	if err := h.invites.UpdateStatus(c.Request.Context(), invite.InviteID, models.InviteStatusAccepted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update invitation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.InviteStatusAccepted, "channel_id": channelID})
}
