package database

import (
	"context"
	"fmt"
)

// UpsertObject creates or refreshes the metadata row for (bucketID, path) in
// a single atomic statement. created_at keeps its original value across
// updates; last_modified_at is bumped on every call. A missing bucket trips
// the foreign key and surfaces as ErrNotFound.
func (db *DB) UpsertObject(ctx context.Context, bucketID int64, path string, size int64) (*Object, error) {
	var object Object
	query := `INSERT INTO objects (bucket_id, path, size, created_at, last_modified_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          ON CONFLICT (bucket_id, path)
	          DO UPDATE SET size = EXCLUDED.size, last_modified_at = NOW()
	          RETURNING id, bucket_id, path, size, created_at, last_modified_at`

	if err := db.GetContext(ctx, &object, query, bucketID, path, size); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert object: %w", err)
	}

	return &object, nil
}

// GetObject retrieves the metadata row for (bucketID, path).
func (db *DB) GetObject(ctx context.Context, bucketID int64, path string) (*Object, error) {
	var object Object
	query := `SELECT id, bucket_id, path, size, created_at, last_modified_at
	          FROM objects WHERE bucket_id = $1 AND path = $2`

	if err := db.GetContext(ctx, &object, query, bucketID, path); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return &object, nil
}

// DeleteObject removes the metadata row for (bucketID, path).
func (db *DB) DeleteObject(ctx context.Context, bucketID int64, path string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM objects WHERE bucket_id = $1 AND path = $2`, bucketID, path)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObjects returns the number of objects in a bucket.
func (db *DB) CountObjects(ctx context.Context, bucketID int64) (int64, error) {
	var count int64
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM objects WHERE bucket_id = $1`, bucketID); err != nil {
		return 0, fmt.Errorf("failed to count objects: %w", err)
	}
	return count, nil
}
