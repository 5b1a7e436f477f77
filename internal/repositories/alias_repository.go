package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"guild-chat-service/internal/models"
)

var (
	ErrAliasNotFound = errors.New("alias not found")
	// ErrDuplicate signals a unique-constraint violation. Callers decide
	// whether that means "alias collision, retry" or "someone else won, re-read".
	ErrDuplicate = errors.New("duplicate row")
)

// AliasRepository abstracts alias persistence.
type AliasRepository interface {
	GetAliasByUser(ctx context.Context, userID int64) (models.AnonymousAlias, error)
	GetAliasOwner(ctx context.Context, aliasID string) (int64, error)
	InsertAlias(ctx context.Context, aliasID string, userID int64) error
}

// AliasRepo is a sqlx implementation of AliasRepository.
type AliasRepo struct {
	db *sqlx.DB
}

// NewAliasRepo constructs an AliasRepo.
func NewAliasRepo(db *sqlx.DB) *AliasRepo {
	return &AliasRepo{db: db}
}

// GetAliasByUser returns the user's alias if one exists.
func (r *AliasRepo) GetAliasByUser(ctx context.Context, userID int64) (models.AnonymousAlias, error) {
	var alias models.AnonymousAlias
	err := r.db.GetContext(ctx, &alias, `SELECT alias_id, user_id, created_at FROM aliases WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AnonymousAlias{}, ErrAliasNotFound
	}
	return alias, err
}

// GetAliasOwner resolves an alias back to its owning user id. This is the
// sole path for ownership checks; client-declared identity is never trusted.
func (r *AliasRepo) GetAliasOwner(ctx context.Context, aliasID string) (int64, error) {
	var userID int64
	err := r.db.GetContext(ctx, &userID, `SELECT user_id FROM aliases WHERE alias_id=$1`, aliasID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAliasNotFound
	}
	return userID, err
}

// InsertAlias persists a new alias mapping. A unique violation on either
// the alias id or the user id surfaces as ErrDuplicate.
func (r *AliasRepo) InsertAlias(ctx context.Context, aliasID string, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO aliases (alias_id, user_id) VALUES ($1, $2)`, aliasID, userID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
