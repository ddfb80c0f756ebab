package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/security"
)

func newCatalogFixture(t *testing.T) (*Registry, *Catalog, *database.User) {
	t.Helper()
	store := database.NewMemStore()
	owner, err := store.CreateUser(context.Background(), "alice", "alice@example.com", nil)
	require.NoError(t, err)
	return NewRegistry(store), NewCatalog(store), owner
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry, _, owner := newCatalogFixture(t)
	ctx := context.Background()

	bucket, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, bucket.OwnerID)

	byName, err := registry.Get(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, bucket.ID, byName.ID)

	byID, err := registry.GetByID(ctx, bucket.ID)
	require.NoError(t, err)
	assert.Equal(t, "media", byID.Name)
}

func TestRegistry_DuplicateName(t *testing.T) {
	registry, _, owner := newCatalogFixture(t)
	ctx := context.Background()

	_, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)

	_, err = registry.Create(ctx, "media", owner.ID)
	assert.ErrorIs(t, err, database.ErrConflict)
}

func TestRegistry_RejectsBadNames(t *testing.T) {
	registry, _, owner := newCatalogFixture(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "a/b", "my bucket"} {
		_, err := registry.Create(ctx, name, owner.ID)
		assert.Error(t, err, "name %q accepted", name)
	}
}

func TestRegistry_DeleteRefusedWhileObjectsRemain(t *testing.T) {
	registry, objects, owner := newCatalogFixture(t)
	ctx := context.Background()

	bucket, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)
	_, err = objects.Put(ctx, bucket.ID, "img/cat.png", 100)
	require.NoError(t, err)

	assert.ErrorIs(t, registry.Delete(ctx, bucket.ID), database.ErrConflict)

	require.NoError(t, objects.Delete(ctx, bucket.ID, "img/cat.png"))
	assert.NoError(t, registry.Delete(ctx, bucket.ID))
}

func TestCatalog_PutIsAnUpsert(t *testing.T) {
	registry, objects, owner := newCatalogFixture(t)
	ctx := context.Background()

	bucket, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)

	first, err := objects.Put(ctx, bucket.ID, "img/cat.png", 100)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := objects.Put(ctx, bucket.ID, "img/cat.png", 250)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(250), second.Size)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, second.LastModifiedAt.After(first.LastModifiedAt))
}

func TestCatalog_PutValidation(t *testing.T) {
	registry, objects, owner := newCatalogFixture(t)
	ctx := context.Background()

	bucket, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)

	_, err = objects.Put(ctx, bucket.ID, "../escape", 100)
	assert.ErrorIs(t, err, security.ErrPathTraversal)

	_, err = objects.Put(ctx, bucket.ID, "/etc/passwd", 100)
	assert.ErrorIs(t, err, security.ErrAbsolutePath)

	_, err = objects.Put(ctx, bucket.ID, "img/cat.png", -1)
	assert.Error(t, err)

	// None of the rejected writes may leave a row behind.
	_, err = objects.Get(ctx, bucket.ID, "img/cat.png")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCatalog_PutMissingBucket(t *testing.T) {
	_, objects, _ := newCatalogFixture(t)

	_, err := objects.Put(context.Background(), 999, "img/cat.png", 100)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestCatalog_SamePathDifferentBuckets(t *testing.T) {
	registry, objects, owner := newCatalogFixture(t)
	ctx := context.Background()

	first, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)
	second, err := registry.Create(ctx, "backup", owner.ID)
	require.NoError(t, err)

	_, err = objects.Put(ctx, first.ID, "img/cat.png", 100)
	require.NoError(t, err)
	_, err = objects.Put(ctx, second.ID, "img/cat.png", 200)
	require.NoError(t, err)

	a, err := objects.Get(ctx, first.ID, "img/cat.png")
	require.NoError(t, err)
	b, err := objects.Get(ctx, second.ID, "img/cat.png")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(100), a.Size)
	assert.Equal(t, int64(200), b.Size)
}

func TestCatalog_DeleteMissingObject(t *testing.T) {
	registry, objects, owner := newCatalogFixture(t)
	ctx := context.Background()

	bucket, err := registry.Create(ctx, "media", owner.ID)
	require.NoError(t, err)

	err = objects.Delete(ctx, bucket.ID, "img/none.png")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
