package catalog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/metrics"
	"github.com/weeb-foss/cdn/internal/security"
)

// Catalog owns object metadata scoped to a bucket.
type Catalog struct {
	store database.Store
	stats *metrics.Metrics
}

// NewCatalog creates an object catalog over the given backend.
func NewCatalog(store database.Store) *Catalog {
	return &Catalog{store: store, stats: metrics.New()}
}

// Put creates or refreshes the metadata row for (bucketID, path). Upsert
// semantics: created_at survives updates, last_modified_at is bumped on
// every call. database.ErrNotFound when the bucket does not exist.
func (c *Catalog) Put(ctx context.Context, bucketID int64, path string, size int64) (*database.Object, error) {
	if err := security.ValidateObjectPath(path); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("object size must be non-negative, got %d", size)
	}

	object, err := c.store.UpsertObject(ctx, bucketID, path, size)
	if err != nil {
		return nil, err
	}
	c.stats.RecordCatalogWrite()

	logrus.WithFields(logrus.Fields{
		"bucket_id": bucketID,
		"path":      path,
		"size":      size,
	}).Debug("Object metadata written")

	return object, nil
}

// Get retrieves the metadata row for (bucketID, path).
func (c *Catalog) Get(ctx context.Context, bucketID int64, path string) (*database.Object, error) {
	return c.store.GetObject(ctx, bucketID, path)
}

// Delete removes the metadata row for (bucketID, path).
// database.ErrNotFound when absent.
func (c *Catalog) Delete(ctx context.Context, bucketID int64, path string) error {
	if err := c.store.DeleteObject(ctx, bucketID, path); err != nil {
		return err
	}
	c.stats.RecordCatalogWrite()

	logrus.WithFields(logrus.Fields{
		"bucket_id": bucketID,
		"path":      path,
	}).Debug("Object metadata deleted")

	return nil
}
