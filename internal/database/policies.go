package database

import (
	"context"
	"fmt"
)

// UpsertPolicy records a grant for (bucketID, userID): replace-on-upgrade,
// insert-if-new. An existing grant at an equal or higher rank is returned
// untouched so a repeated or weaker grant never downgrades anyone. The
// schema carries no uniqueness constraint on the pair, so readers must
// still max-resolve across rows; this writer just keeps the table tidy.
func (db *DB) UpsertPolicy(ctx context.Context, bucketID, userID int64, perm Permission) (*AccessPolicy, error) {
	if !perm.Valid() {
		return nil, fmt.Errorf("invalid permission %q", perm)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing []AccessPolicy
	query := `SELECT id, bucket_id, user_id, permission, created_at
	          FROM access_policies WHERE bucket_id = $1 AND user_id = $2 FOR UPDATE`
	if err := tx.SelectContext(ctx, &existing, query, bucketID, userID); err != nil {
		return nil, fmt.Errorf("failed to read existing grants: %w", err)
	}

	for i := range existing {
		if existing[i].Permission.Rank() >= perm.Rank() {
			return &existing[i], nil
		}
	}

	if len(existing) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM access_policies WHERE bucket_id = $1 AND user_id = $2`, bucketID, userID); err != nil {
			return nil, fmt.Errorf("failed to replace grants: %w", err)
		}
	}

	var policy AccessPolicy
	insert := `INSERT INTO access_policies (bucket_id, user_id, permission, created_at)
	           VALUES ($1, $2, $3, NOW())
	           RETURNING id, bucket_id, user_id, permission, created_at`
	if err := tx.GetContext(ctx, &policy, insert, bucketID, userID, perm); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert grant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit grant: %w", err)
	}

	return &policy, nil
}

// ListPolicies returns every grant row for the (bucketID, userID) pair.
func (db *DB) ListPolicies(ctx context.Context, bucketID, userID int64) ([]AccessPolicy, error) {
	var policies []AccessPolicy
	query := `SELECT id, bucket_id, user_id, permission, created_at
	          FROM access_policies WHERE bucket_id = $1 AND user_id = $2`

	if err := db.SelectContext(ctx, &policies, query, bucketID, userID); err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	return policies, nil
}

// DeletePolicies removes every grant row for the pair. Idempotent.
func (db *DB) DeletePolicies(ctx context.Context, bucketID, userID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM access_policies WHERE bucket_id = $1 AND user_id = $2`, bucketID, userID); err != nil {
		return fmt.Errorf("failed to delete grants: %w", err)
	}
	return nil
}
