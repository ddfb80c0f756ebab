package database

import (
	"context"
	"fmt"
)

// CreateUser inserts a new user row. The unique constraint on username is
// the only duplicate check; a violation surfaces as ErrConflict.
func (db *DB) CreateUser(ctx context.Context, username, email string, passwordHash *string) (*User, error) {
	var user User
	query := `INSERT INTO users (username, email, password_hash, created_at)
	          VALUES ($1, $2, $3, NOW())
	          RETURNING id, username, email, password_hash, created_at`

	if err := db.GetContext(ctx, &user, query, username, email, passwordHash); err != nil {
		if err = translateError(err); err == ErrConflict {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetUserByID retrieves a user by primary key.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE id = $1`

	if err := db.GetContext(ctx, &user, query, id); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by its unique username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE username = $1`

	if err := db.GetContext(ctx, &user, query, username); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUser runs fn against the current row under a row lock and writes the
// result back, all in one transaction. A concurrent credential change can
// never be observed half-applied: fn evaluates against the same row version
// the UPDATE commits over.
func (db *DB) UpdateUser(ctx context.Context, id int64, fn func(*User) error) (*User, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var user User
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &user, query, id); err != nil {
		if err = translateError(err); err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock user row: %w", err)
	}

	if err := fn(&user); err != nil {
		return nil, err
	}

	update := `UPDATE users SET username = $1, email = $2, password_hash = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, update, user.Username, user.Email, user.PasswordHash, user.ID); err != nil {
		if err = translateError(err); err == ErrConflict {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}

	return &user, nil
}

// ListUsers returns all users, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users ORDER BY created_at DESC`

	if err := db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}
