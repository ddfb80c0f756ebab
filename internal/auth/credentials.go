// Package auth implements the credential store and API key manager: it is
// the only place that resolves a password or bearer secret to a user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/metrics"
)

// dummyHash is compared against when the user or its password hash is
// missing, so the miss path costs a bcrypt verification too and lookup
// outcomes stay indistinguishable by timing.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("cdn-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// CredentialStore owns user identity and the password hash lifecycle.
type CredentialStore struct {
	store database.Store
	stats *metrics.Metrics
}

// NewCredentialStore creates a credential store over the given backend.
func NewCredentialStore(store database.Store) *CredentialStore {
	return &CredentialStore{store: store, stats: metrics.New()}
}

// UserUpdate carries the optional fields of an account update. Nil means
// leave the field as-is; an empty string is a value like any other.
type UserUpdate struct {
	Username        *string
	Email           *string
	NewPassword     *string
	CurrentPassword *string
}

// Register creates a new account. The password is stored as a salted bcrypt
// hash; an empty password registers the account with no password set, which
// makes it API-key-only until a password is added. Returns
// database.ErrConflict when the username is taken.
func (s *CredentialStore) Register(ctx context.Context, username, email, password string) (*database.User, error) {
	var hash *string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hashed)
		hash = &h
	}

	user, err := s.store.CreateUser(ctx, username, email, hash)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User registered")

	return user, nil
}

// Update applies the optional fields of upd to the account in one atomic
// read-modify-write. Rules:
//   - A supplied CurrentPassword must verify against the stored hash or the
//     whole update is rejected, whatever else is being changed.
//   - A new password is accepted only when the account has no password yet
//     or CurrentPassword verifies.
//   - Without CurrentPassword and without a password change, no proof is
//     required.
//
// Every accepted password change rehashes with a fresh random salt.
func (s *CredentialStore) Update(ctx context.Context, userID int64, upd UserUpdate) (*database.User, error) {
	user, err := s.store.UpdateUser(ctx, userID, func(u *database.User) error {
		verified := false
		if upd.CurrentPassword != nil {
			if u.PasswordHash == nil {
				return ErrInvalidCredential
			}
			if bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(*upd.CurrentPassword)) != nil {
				return ErrInvalidCredential
			}
			verified = true
		}

		if upd.NewPassword != nil {
			if u.PasswordHash != nil && !verified {
				return ErrInvalidCredential
			}
			hashed, err := bcrypt.GenerateFromPassword([]byte(*upd.NewPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			h := string(hashed)
			u.PasswordHash = &h
		}

		if upd.Username != nil {
			u.Username = *upd.Username
		}
		if upd.Email != nil {
			u.Email = *upd.Email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":          user.ID,
		"password_rotated": upd.NewPassword != nil,
	}).Info("User updated")

	return user, nil
}

// Verify authenticates a password against the account named by username or
// decimal id. Any credential miss returns ErrInvalidCredential without
// detail; the plaintext is never logged. A backend failure is not a miss
// and surfaces as its own error.
func (s *CredentialStore) Verify(ctx context.Context, usernameOrID, password string) (*database.User, error) {
	s.stats.RecordAuthAttempt()

	user, err := s.lookup(ctx, usernameOrID)
	if errors.Is(err, database.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.stats.RecordAuthFailure()
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.stats.RecordAuthFailure()
		return nil, ErrInvalidCredential
	}

	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		s.stats.RecordAuthFailure()
		return nil, ErrInvalidCredential
	}

	return user, nil
}

func (s *CredentialStore) lookup(ctx context.Context, usernameOrID string) (*database.User, error) {
	user, err := s.store.GetUserByUsername(ctx, usernameOrID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	id, perr := strconv.ParseInt(usernameOrID, 10, 64)
	if perr != nil {
		return nil, database.ErrNotFound
	}
	return s.store.GetUserByID(ctx, id)
}
