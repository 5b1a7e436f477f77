package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, recorder *telemetry.Recorder, audits repositories.AuditRepository, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if recorder == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit recorder not configured"})
			return
		}
		recorder.Record(c.Request.Context(), models.AuditLogEntry{
			UserID:     userIDFromContext(c),
			ActionType: "audit_test",
			Details:    "request_id=" + requestIDFromContext(c),
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/audit-log", func(c *gin.Context) {
		if audits == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit repository not configured"})
			return
		}
		channelID, err := strconv.ParseInt(c.Query("channel_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel_id"})
			return
		}
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
				limit = parsed
			}
		}
		entries, err := audits.ListForChannel(c.Request.Context(), channelID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})
}
