package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

var ErrInviteNotFound = errors.New("invitation not found")

// InvitationRepository stores DM and group invitations. Invite ids are
// snowflakes minted by the caller before the insert.
type InvitationRepository interface {
	CreateInvitation(ctx context.Context, invite models.Invitation) error
	GetInvitation(ctx context.Context, inviteID int64) (models.Invitation, error)
	ListPendingForUser(ctx context.Context, userID int64) ([]models.Invitation, error)
	UpdateStatus(ctx context.Context, inviteID int64, status string) error
}

// InvitationRepo is a sqlx implementation of InvitationRepository.
type InvitationRepo struct {
	db *sqlx.DB
}

// NewInvitationRepo constructs an InvitationRepo.
func NewInvitationRepo(db *sqlx.DB) *InvitationRepo {
	return &InvitationRepo{db: db}
}

// CreateInvitation persists a pending invitation.
func (r *InvitationRepo) CreateInvitation(ctx context.Context, invite models.Invitation) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO invitations (invite_id, sender_id, target_user_id, target_channel_id, type, status)
        VALUES ($1, $2, $3, $4, $5, 'pending')`,
		invite.InviteID, invite.SenderID, invite.TargetUserID, invite.TargetChannelID, invite.Type)
	return err
}

// GetInvitation fetches one invitation.
func (r *InvitationRepo) GetInvitation(ctx context.Context, inviteID int64) (models.Invitation, error) {
	var invite models.Invitation
	err := r.db.GetContext(ctx, &invite, `SELECT invite_id, sender_id, target_user_id, target_channel_id, type, status, created_at
        FROM invitations WHERE invite_id=$1`, inviteID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Invitation{}, ErrInviteNotFound
	}
	return invite, err
}

// ListPendingForUser returns invitations waiting on the user's decision.
func (r *InvitationRepo) ListPendingForUser(ctx context.Context, userID int64) ([]models.Invitation, error) {
	var invites []models.Invitation
	err := r.db.SelectContext(ctx, &invites, `SELECT invite_id, sender_id, target_user_id, target_channel_id, type, status, created_at
        FROM invitations WHERE target_user_id=$1 AND status='pending' ORDER BY created_at DESC`, userID)
	return invites, err
}

// UpdateStatus resolves an invitation.
func (r *InvitationRepo) UpdateStatus(ctx context.Context, inviteID int64, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE invitations SET status=$2 WHERE invite_id=$1`, inviteID, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrInviteNotFound
	}
	return nil
}
