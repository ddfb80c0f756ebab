package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// CreateBucket inserts a bucket row. Name uniqueness is global and enforced
// by the backend constraint.
func (db *DB) CreateBucket(ctx context.Context, name string, ownerID int64) (*Bucket, error) {
	var bucket Bucket
	query := `INSERT INTO buckets (name, owner_id, created_at)
	          VALUES ($1, $2, NOW())
	          RETURNING id, name, owner_id, created_at`

	if err := db.GetContext(ctx, &bucket, query, name, ownerID); err != nil {
		switch translated := translateError(err); translated {
		case ErrConflict, ErrNotFound:
			return nil, translated
		default:
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &bucket, nil
}

// GetBucketByID retrieves a bucket by primary key.
func (db *DB) GetBucketByID(ctx context.Context, id int64) (*Bucket, error) {
	var bucket Bucket
	query := `SELECT id, name, owner_id, created_at FROM buckets WHERE id = $1`

	if err := db.GetContext(ctx, &bucket, query, id); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &bucket, nil
}

// GetBucketByName retrieves a bucket by its globally unique name.
func (db *DB) GetBucketByName(ctx context.Context, name string) (*Bucket, error) {
	var bucket Bucket
	query := `SELECT id, name, owner_id, created_at FROM buckets WHERE name = $1`

	if err := db.GetContext(ctx, &bucket, query, name); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &bucket, nil
}

// DeleteBucket removes an empty bucket together with its grants. The object
// count check and the delete run in one transaction so a concurrent upsert
// cannot slip an object into a vanishing bucket.
func (db *DB) DeleteBucket(ctx context.Context, id int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var remaining int64
	if err := tx.GetContext(ctx, &remaining, `SELECT COUNT(*) FROM objects WHERE bucket_id = $1`, id); err != nil {
		return fmt.Errorf("failed to count objects: %w", err)
	}
	if remaining > 0 {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM access_policies WHERE bucket_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete bucket grants: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE id = $1`, id)
	if err != nil {
		return translateBucketDeleteError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// translateBucketDeleteError maps errors from the bucket DELETE statement.
// An objects foreign key violation here means an insert landed between the
// emptiness check and the delete; that is the same situation as a non-empty
// bucket, so it answers ErrConflict. translateError's general FK mapping
// (ErrNotFound) would be wrong for this statement.
func translateBucketDeleteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return ErrConflict
	}
	return fmt.Errorf("failed to delete bucket: %w", err)
}
