package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/repositories"
)

// GuildHandler manages guild endpoints.
type GuildHandler struct {
	topology repositories.TopologyRepository
}

// NewGuildHandler builds a GuildHandler.
func NewGuildHandler(topology repositories.TopologyRepository) *GuildHandler {
	return &GuildHandler{topology: topology}
}

// CreateGuild creates a guild with its default category and channel and
// enrolls the creator as owner.
func (h *GuildHandler) CreateGuild(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt64("userID")
	guild, err := h.topology.CreateGuild(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create guild"})
		return
	}

	c.JSON(http.StatusCreated, guild)
}

// ListGuilds returns the guilds the authenticated user belongs to.
func (h *GuildHandler) ListGuilds(c *gin.Context) {
	userID := c.GetInt64("userID")

	guilds, err := h.topology.ListGuildsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load guilds"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"guilds": guilds})
}

// GetGuildHierarchy returns the guild's categories with their channels,
// uncategorized channels first.
func (h *GuildHandler) GetGuildHierarchy(c *gin.Context) {
	guildID, err := strconv.ParseInt(c.Param("guild_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild id"})
		return
	}

	hierarchy, err := h.topology.GetGuildHierarchy(c.Request.Context(), guildID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrGuildNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "guild not found"})
		return
	}

	c.JSON(http.StatusOK, hierarchy)
}
