package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"guild-chat-service/internal/repositories"
)

// ErrAliasExhausted is returned when alias generation keeps colliding past
// the retry budget.
var ErrAliasExhausted = errors.New("identity: failed to generate unique alias")

const (
	aliasPrefix     = "anon_"
	aliasSuffixLen  = 6
	aliasMaxRetries = 3
)

const aliasAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Anonymizer issues and resolves stable per-user aliases. An alias is
// immutable once created; concurrent callers for the same user converge on
// a single alias.
type Anonymizer struct {
	aliases repositories.AliasRepository
}

// NewAnonymizer constructs an Anonymizer.
func NewAnonymizer(aliases repositories.AliasRepository) *Anonymizer {
	return &Anonymizer{aliases: aliases}
}

// GetOrCreateAlias returns the user's alias, creating it lazily. A
// duplicate insert means another caller won the race, so the stored alias
// is re-read; an alias-id collision retries with a fresh candidate.
func (a *Anonymizer) GetOrCreateAlias(ctx context.Context, userID int64) (string, error) {
	existing, err := a.aliases.GetAliasByUser(ctx, userID)
	if err == nil {
		return existing.AliasID, nil
	}
	if !errors.Is(err, repositories.ErrAliasNotFound) {
		return "", err
	}

	for i := 0; i < aliasMaxRetries; i++ {
		candidate, err := newAliasID()
		if err != nil {
			return "", err
		}
		err = a.aliases.InsertAlias(ctx, candidate, userID)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repositories.ErrDuplicate) {
			return "", err
		}
		// Either this user already got an alias concurrently, or the
		// candidate itself collided. Re-read to find out.
		existing, readErr := a.aliases.GetAliasByUser(ctx, userID)
		if readErr == nil {
			return existing.AliasID, nil
		}
		if !errors.Is(readErr, repositories.ErrAliasNotFound) {
			return "", readErr
		}
	}
	return "", ErrAliasExhausted
}

// ResolveOwner maps an alias back to its owner. Every ownership check on
// edit/delete goes through here.
func (a *Anonymizer) ResolveOwner(ctx context.Context, aliasID string) (int64, error) {
	return a.aliases.GetAliasOwner(ctx, aliasID)
}

func newAliasID() (string, error) {
	buf := make([]byte, aliasSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = aliasAlphabet[int(b)%len(aliasAlphabet)]
	}
	return aliasPrefix + string(buf), nil
}
