package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/identity"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

// ConversationHandler serves the per-user conversation listing, direct
// message creation and the caller's own identity view.
type ConversationHandler struct {
	topology   repositories.TopologyRepository
	profiles   repositories.ProfileRepository
	anonymizer *identity.Anonymizer
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(topology repositories.TopologyRepository, profiles repositories.ProfileRepository, anonymizer *identity.Anonymizer) *ConversationHandler {
	return &ConversationHandler{topology: topology, profiles: profiles, anonymizer: anonymizer}
}

// ListConversations buckets everything the caller can open: direct
// messages, public channels and the channels of each joined guild.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	dms, err := h.topology.ListDMsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	public, err := h.topology.ListPublicChannels(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	guilds, err := h.topology.ListGuildsForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	personal := make([]models.Conversation, 0, len(dms))
	for _, ch := range dms {
		personal = append(personal, models.Conversation{ChannelID: ch.ID, Name: ch.Name, Kind: "dm"})
	}

	open := make([]models.Conversation, 0, len(public))
	for _, ch := range public {
		open = append(open, models.Conversation{ChannelID: ch.ID, Name: ch.Name, Kind: "public"})
	}

	var group []models.Conversation
	for _, guild := range guilds {
		channels, err := h.topology.ListGuildChannels(ctx, guild.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
			return
		}
		for _, ch := range channels {
			group = append(group, models.Conversation{
				ChannelID: ch.ID,
				Name:      ch.Name,
				GuildName: guild.Name,
				Kind:      "guild",
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"personal": personal,
		"public":   open,
		"group":    group,
	})
}

// CreateDM returns the direct channel between the caller and the target,
// creating it on first use. Concurrent first calls converge on one channel.
func (h *ConversationHandler) CreateDM(c *gin.Context) {
	var req struct {
		TargetUserID int64 `json:"target_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	if userID == req.TargetUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a dm with yourself"})
		return
	}

	channel, err := h.topology.GetOrCreateDM(c.Request.Context(), userID, req.TargetUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open dm"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel_id": channel.ID})
}

// Me returns the caller's identity along with their anonymous alias,
// issuing the alias on first call. Display data comes from the mirrored
// profile when one exists, so it reflects the latest websocket handshake
// rather than a possibly stale token.
func (h *ConversationHandler) Me(c *gin.Context) {
	userID := c.GetInt64("userID")
	ctx := c.Request.Context()

	aliasID, err := h.anonymizer.GetOrCreateAlias(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve alias"})
		return
	}

	username := c.GetString("username")
	avatarURL := c.GetString("avatarURL")
	if h.profiles != nil {
		if profile, err := h.profiles.GetProfile(ctx, userID); err == nil {
			username = profile.Username
			avatarURL = profile.AvatarURL
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"username":   username,
		"avatar_url": avatarURL,
		"role":       c.GetString("role"),
		"alias_id":   aliasID,
	})
}
