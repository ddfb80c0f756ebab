// Package catalog owns bucket identity and object metadata. It performs no
// permission checks: authorization is the policy engine's decision and the
// catalog trusts its caller, so storage mechanics and policy can evolve
// independently.
package catalog

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/security"
)

// Registry owns bucket identity and ownership.
type Registry struct {
	store database.Store
}

// NewRegistry creates a bucket registry over the given backend.
func NewRegistry(store database.Store) *Registry {
	return &Registry{store: store}
}

// Create registers a new bucket owned by ownerID. The name is globally
// unique; database.ErrConflict when taken.
func (r *Registry) Create(ctx context.Context, name string, ownerID int64) (*database.Bucket, error) {
	if err := security.ValidateBucketName(name); err != nil {
		return nil, err
	}

	bucket, err := r.store.CreateBucket(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"bucket":   bucket.Name,
		"owner_id": ownerID,
	}).Info("Bucket created")

	return bucket, nil
}

// Get retrieves a bucket by name.
func (r *Registry) Get(ctx context.Context, name string) (*database.Bucket, error) {
	return r.store.GetBucketByName(ctx, name)
}

// GetByID retrieves a bucket by id.
func (r *Registry) GetByID(ctx context.Context, id int64) (*database.Bucket, error) {
	return r.store.GetBucketByID(ctx, id)
}

// Delete removes an empty bucket and its grants. A bucket that still holds
// objects is refused with database.ErrConflict so no object can ever point
// at a dead bucket.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if err := r.store.DeleteBucket(ctx, id); err != nil {
		return err
	}

	logrus.WithField("bucket_id", id).Info("Bucket deleted")
	return nil
}
