package database

import (
	"context"
	"fmt"
)

// CreateAPIKey inserts a key row for the user. A digest collision hits the
// unique constraint and comes back as ErrConflict for the caller to retry
// with a fresh secret.
func (db *DB) CreateAPIKey(ctx context.Context, userID int64, secretDigest string) (*APIKey, error) {
	var key APIKey
	query := `INSERT INTO api_keys (user_id, secret, created_at)
	          VALUES ($1, $2, NOW())
	          RETURNING id, user_id, secret, created_at, last_used_at`

	if err := db.GetContext(ctx, &key, query, userID, secretDigest); err != nil {
		switch translated := translateError(err); translated {
		case ErrConflict, ErrNotFound:
			return nil, translated
		default:
			return nil, fmt.Errorf("failed to create api key: %w", err)
		}
	}

	return &key, nil
}

// GetAPIKeyByDigest looks up a key by the digest of its secret.
func (db *DB) GetAPIKeyByDigest(ctx context.Context, secretDigest string) (*APIKey, error) {
	var key APIKey
	query := `SELECT id, user_id, secret, created_at, last_used_at
	          FROM api_keys WHERE secret = $1`

	if err := db.GetContext(ctx, &key, query, secretDigest); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

// GetAPIKeyByID retrieves a key by primary key.
func (db *DB) GetAPIKeyByID(ctx context.Context, id int64) (*APIKey, error) {
	var key APIKey
	query := `SELECT id, user_id, secret, created_at, last_used_at
	          FROM api_keys WHERE id = $1`

	if err := db.GetContext(ctx, &key, query, id); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

// TouchAPIKey advances last_used_at. GREATEST keeps the column monotonic
// even when delayed writes land out of order.
func (db *DB) TouchAPIKey(ctx context.Context, id int64) error {
	query := `UPDATE api_keys SET last_used_at = GREATEST(COALESCE(last_used_at, NOW()), NOW()) WHERE id = $1`
	_, err := db.ExecContext(ctx, query, id)
	return err
}

// DeleteAPIKey removes a key row.
func (db *DB) DeleteAPIKey(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
