package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weeb-foss/cdn/internal/database"
)

type engineFixture struct {
	engine *Engine
	store  *database.MemStore
	alice  *database.User
	bob    *database.User
	media  *database.Bucket
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemStore()

	alice, err := store.CreateUser(ctx, "alice", "alice@example.com", nil)
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, "bob", "bob@example.com", nil)
	require.NoError(t, err)
	media, err := store.CreateBucket(ctx, "media", alice.ID)
	require.NoError(t, err)

	return &engineFixture{
		engine: NewEngine(store),
		store:  store,
		alice:  alice,
		bob:    bob,
		media:  media,
	}
}

func TestAuthorize_OwnerAlwaysAllowed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for _, action := range []database.Permission{
		database.PermissionRead,
		database.PermissionWrite,
		database.PermissionAdmin,
	} {
		decision, err := f.engine.Authorize(ctx, f.alice.ID, f.media.ID, action)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "owner denied %s", action)
		assert.Equal(t, database.PermissionAdmin, decision.Effective)
	}
}

func TestAuthorize_NoGrantDenies(t *testing.T) {
	f := newEngineFixture(t)

	decision, err := f.engine.Authorize(context.Background(), f.bob.ID, f.media.ID, database.PermissionRead)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Empty(t, decision.Effective)
}

func TestAuthorize_GrantHierarchy(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionWrite)
	require.NoError(t, err)

	read, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionRead)
	require.NoError(t, err)
	assert.True(t, read.Allowed)
	assert.Equal(t, database.PermissionWrite, read.Effective)

	write, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionWrite)
	require.NoError(t, err)
	assert.True(t, write.Allowed)

	admin, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionAdmin)
	require.NoError(t, err)
	assert.False(t, admin.Allowed)
}

func TestAuthorize_ReadDoesNotAllowWrite(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionRead)
	require.NoError(t, err)

	decision, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionWrite)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, database.PermissionRead, decision.Effective)
}

func TestAuthorize_MissingBucketIsNotFound(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Authorize(context.Background(), f.alice.ID, 999, database.PermissionRead)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRevoke_TakesEffectImmediately(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionWrite)
	require.NoError(t, err)

	before, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionWrite)
	require.NoError(t, err)
	require.True(t, before.Allowed)

	require.NoError(t, f.engine.Revoke(ctx, f.media.ID, f.bob.ID))

	after, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionRead)
	require.NoError(t, err)
	assert.False(t, after.Allowed)

	// Revoking again is a no-op, not an error.
	assert.NoError(t, f.engine.Revoke(ctx, f.media.ID, f.bob.ID))
}

func TestGrant_UpgradeAndNoDowngrade(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionRead)
	require.NoError(t, err)

	upgraded, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionAdmin)
	require.NoError(t, err)
	assert.Equal(t, database.PermissionAdmin, upgraded.Permission)

	kept, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, database.PermissionAdmin, kept.Permission)

	decision, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionAdmin)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGrant_UnknownSubjects(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, 999, f.bob.ID, database.PermissionRead)
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = f.engine.Grant(ctx, f.media.ID, 999, database.PermissionRead)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

// Two users share one bucket: the owner retains full control while the
// grantee's reach tracks the single grant row.
func TestSharedBucketScenario(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, f.media.ID, f.bob.ID, database.PermissionWrite)
	require.NoError(t, err)

	bobWrite, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionWrite)
	require.NoError(t, err)
	assert.True(t, bobWrite.Allowed)

	bobAdmin, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionAdmin)
	require.NoError(t, err)
	assert.False(t, bobAdmin.Allowed)

	require.NoError(t, f.engine.Revoke(ctx, f.media.ID, f.bob.ID))

	bobRead, err := f.engine.Authorize(ctx, f.bob.ID, f.media.ID, database.PermissionRead)
	require.NoError(t, err)
	assert.False(t, bobRead.Allowed)

	ownerAdmin, err := f.engine.Authorize(ctx, f.alice.ID, f.media.ID, database.PermissionAdmin)
	require.NoError(t, err)
	assert.True(t, ownerAdmin.Allowed)
}
