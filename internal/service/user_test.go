package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lesson-api/internal/apperror"
	"github.com/sakif/lesson-api/internal/model"
	"github.com/sakif/lesson-api/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(newTestDB(t), testLogger())
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	_, err = svc.Create(ctx, "Other Ann", "ann@example.com")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	// exact match: a different case is a different email
	_, err = svc.Create(ctx, "Loud Ann", "ANN@example.com")
	assert.NoError(t, err)
}

func TestUserUpdate_EmailUniqueness(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	ann, err := svc.Create(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)

	// keeping your own email is fine
	updated, err := svc.Update(ctx, ann.ID, model.UserPatch{
		Name:  model.Some("Ann B."),
		Email: model.Some("ann@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann B.", updated.Name)

	_, err = svc.Update(ctx, ann.ID, model.UserPatch{Email: model.Some("bob@example.com")})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := svc.Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got.Email, "failed update must not change the record")
}

func TestUserUpdate_PartialAndNull(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()
	ann, err := svc.Create(ctx, "Ann", "ann@example.com")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, ann.ID, model.UserPatch{Email: model.Some("new@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Ann", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)

	_, err = svc.Update(ctx, ann.ID, model.UserPatch{Name: model.Null[string]()})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Update(ctx, 999, model.UserPatch{Name: model.Some("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserDelete_IDNotReused(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, "A", "a@example.com")
	b, _ := svc.Create(ctx, "B", "b@example.com")

	removed, err := svc.Delete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.Name)

	c, err := svc.Create(ctx, "C", "c@example.com")
	require.NoError(t, err)
	assert.Greater(t, c.ID, b.ID)
	assert.Equal(t, int64(1), a.ID)

	_, err = svc.Delete(ctx, b.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSeedDemo_Idempotent(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	created, err := svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Len(t, created, 3)

	created, err = svc.SeedDemo(ctx)
	require.NoError(t, err)
	assert.Empty(t, created, "second seed should create nothing")

	// delete one demo user; reseeding restores only that one
	_, err = svc.Delete(ctx, 2)
	require.NoError(t, err)
	created, err = svc.SeedDemo(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "maria@example.com", created[0].Email)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUserCreate_ConcurrentSameEmail(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Create(ctx, "Racer", "race@example.com"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
