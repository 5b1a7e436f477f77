package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"guild-chat-service/internal/models"
)

// ProfileRepository mirrors display data and platform roles supplied by
// the identity collaborator.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, profile models.UserProfile) error
	GetProfile(ctx context.Context, userID int64) (models.UserProfile, error)
	UpsertPlatformRole(ctx context.Context, userID int64, role string) error
}

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// UpsertProfile refreshes the local display-data mirror for a user.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, profile models.UserProfile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO profiles (user_id, username, avatar_url) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url`,
		profile.UserID, profile.Username, profile.AvatarURL)
	return err
}

// GetProfile returns the mirrored display data for a user.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID int64) (models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, `SELECT user_id, username, avatar_url FROM profiles WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrProfileNotFound
	}
	return profile, err
}

// UpsertPlatformRole records a platform-elevated role for the user.
func (r *ProfileRepo) UpsertPlatformRole(ctx context.Context, userID int64, role string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO platform_roles (user_id, role) VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`, userID, role)
	return err
}
