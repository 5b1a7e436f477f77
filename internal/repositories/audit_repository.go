package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

// AuditRepository appends moderation-relevant actions. The log is
// append-only: no update or delete path exists.
type AuditRepository interface {
	Append(ctx context.Context, entry models.AuditLogEntry) error
	ListForChannel(ctx context.Context, channelID int64, limit int) ([]models.AuditLogEntry, error)
}

// AuditRepo is a sqlx implementation of AuditRepository.
type AuditRepo struct {
	db *sqlx.DB
}

// NewAuditRepo constructs an AuditRepo.
func NewAuditRepo(db *sqlx.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append stores one audit entry.
func (r *AuditRepo) Append(ctx context.Context, entry models.AuditLogEntry) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO audit_log (channel_id, user_id, action_type, details)
        VALUES ($1, $2, $3, $4)`, entry.ChannelID, entry.UserID, entry.ActionType, entry.Details)
	return err
}

// ListForChannel returns recent audit entries for a channel, newest first.
func (r *AuditRepo) ListForChannel(ctx context.Context, channelID int64, limit int) ([]models.AuditLogEntry, error) {
	var entries []models.AuditLogEntry
	err := r.db.SelectContext(ctx, &entries, `SELECT id, channel_id, user_id, action_type, details, created_at
        FROM audit_log WHERE channel_id=$1 ORDER BY created_at DESC LIMIT $2`, channelID, limit)
	return entries, err
}
