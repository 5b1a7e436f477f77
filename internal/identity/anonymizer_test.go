package identity

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

// memAliasRepo mimics the uniqueness constraints of the aliases table.
type memAliasRepo struct {
	mu      sync.Mutex
	byUser  map[int64]string
	byAlias map[string]int64
	inserts int
}

func newMemAliasRepo() *memAliasRepo {
	return &memAliasRepo{byUser: map[int64]string{}, byAlias: map[string]int64{}}
}

func (r *memAliasRepo) GetAliasByUser(_ context.Context, userID int64) (models.AnonymousAlias, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alias, ok := r.byUser[userID]
	if !ok {
		return models.AnonymousAlias{}, repositories.ErrAliasNotFound
	}
	return models.AnonymousAlias{AliasID: alias, UserID: userID}, nil
}

func (r *memAliasRepo) GetAliasOwner(_ context.Context, aliasID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.byAlias[aliasID]
	if !ok {
		return 0, repositories.ErrAliasNotFound
	}
	return owner, nil
}

func (r *memAliasRepo) InsertAlias(_ context.Context, aliasID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byAlias[aliasID]; taken {
		return repositories.ErrDuplicate
	}
	if _, taken := r.byUser[userID]; taken {
		return repositories.ErrDuplicate
	}
	r.byAlias[aliasID] = userID
	r.byUser[userID] = aliasID
	r.inserts++
	return nil
}

func TestGetOrCreateAliasShape(t *testing.T) {
	anon := NewAnonymizer(newMemAliasRepo())

	alias, err := anon.GetOrCreateAlias(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(alias, "anon_"))
	assert.Len(t, alias, len("anon_")+6)
}

func TestGetOrCreateAliasIsStable(t *testing.T) {
	anon := NewAnonymizer(newMemAliasRepo())

	first, err := anon.GetOrCreateAlias(context.Background(), 7)
	require.NoError(t, err)
	second, err := anon.GetOrCreateAlias(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrCreateAliasConvergesUnderConcurrency(t *testing.T) {
	repo := newMemAliasRepo()
	anon := NewAnonymizer(repo)

	const callers = 32
	results := make(chan string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			alias, err := anon.GetOrCreateAlias(context.Background(), 99)
			assert.NoError(t, err)
			results <- alias
		}()
	}
	wg.Wait()
	close(results)

	distinct := map[string]struct{}{}
	for alias := range results {
		distinct[alias] = struct{}{}
	}
	assert.Len(t, distinct, 1, "all callers must converge on one alias")
	assert.Equal(t, 1, repo.inserts, "alias must be created exactly once")
}

func TestResolveOwner(t *testing.T) {
	repo := newMemAliasRepo()
	anon := NewAnonymizer(repo)

	alias, err := anon.GetOrCreateAlias(context.Background(), 5)
	require.NoError(t, err)

	owner, err := anon.ResolveOwner(context.Background(), alias)
	require.NoError(t, err)
	assert.Equal(t, int64(5), owner)

	_, err = anon.ResolveOwner(context.Background(), "anon_nobody")
	assert.ErrorIs(t, err, repositories.ErrAliasNotFound)
}

func TestGetOrCreateAliasExhaustsRetries(t *testing.T) {
	repo := &collidingRepo{}
	anon := NewAnonymizer(repo)

	_, err := anon.GetOrCreateAlias(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAliasExhausted)
	assert.Equal(t, 3, repo.attempts)
}

// collidingRepo rejects every insert as an alias-id collision while the
// user itself never gains an alias.
type collidingRepo struct {
	attempts int
}

func (r *collidingRepo) GetAliasByUser(context.Context, int64) (models.AnonymousAlias, error) {
	return models.AnonymousAlias{}, repositories.ErrAliasNotFound
}

func (r *collidingRepo) GetAliasOwner(context.Context, string) (int64, error) {
	return 0, repositories.ErrAliasNotFound
}

func (r *collidingRepo) InsertAlias(context.Context, string, int64) error {
	r.attempts++
	return repositories.ErrDuplicate
}
