package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/metrics"
)

const (
	secretBytes = 32
	// secretPrefix makes leaked keys easy to recognize in scanners.
	secretPrefix = "cdnk_"

	issueRetries = 5
)

// KeyManager issues, validates and revokes API keys. Only the SHA-256
// digest of a secret is persisted; the plaintext exists once, in the
// return value of Issue.
type KeyManager struct {
	store database.Store
	stats *metrics.Metrics
}

// NewKeyManager creates a key manager over the given backend.
func NewKeyManager(store database.Store) *KeyManager {
	return &KeyManager{store: store, stats: metrics.New()}
}

// Issue mints a new key for the user and returns the row together with the
// plaintext secret. A digest collision on insert is regenerated, never
// surfaced. Returns database.ErrNotFound when the user does not exist.
func (m *KeyManager) Issue(ctx context.Context, userID int64) (*database.APIKey, string, error) {
	for attempt := 0; attempt < issueRetries; attempt++ {
		secret, err := generateSecret()
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate secret: %w", err)
		}

		key, err := m.store.CreateAPIKey(ctx, userID, digest(secret))
		if errors.Is(err, database.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		logrus.WithFields(logrus.Fields{
			"key_id":  key.ID,
			"user_id": userID,
		}).Info("API key issued")

		return key, secret, nil
	}
	return nil, "", fmt.Errorf("failed to issue api key after %d attempts", issueRetries)
}

// Validate resolves a bearer secret to its owning user. Only an absent key
// or owner is a credential miss; a backend failure surfaces as its own
// error. last_used_at is advanced off the request path; a failure to record
// it is logged and never turns a valid credential into a denial.
func (m *KeyManager) Validate(ctx context.Context, secret string) (*database.User, error) {
	m.stats.RecordKeyValidation()

	key, err := m.store.GetAPIKeyByDigest(ctx, digest(secret))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	user, err := m.store.GetUserByID(ctx, key.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up key owner: %w", err)
	}

	go func() {
		if err := m.store.TouchAPIKey(context.Background(), key.ID); err != nil {
			logrus.WithFields(logrus.Fields{
				"key_id": key.ID,
				"error":  err,
			}).Warn("Failed to record api key usage")
		}
	}()

	return user, nil
}

// Revoke deletes a key. Only the owner may revoke; anyone else gets
// ErrForbidden and the key stays live.
func (m *KeyManager) Revoke(ctx context.Context, keyID, requestingUserID int64) error {
	key, err := m.store.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		return err
	}
	if key.UserID != requestingUserID {
		return ErrForbidden
	}

	if err := m.store.DeleteAPIKey(ctx, keyID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"key_id":  keyID,
		"user_id": requestingUserID,
	}).Info("API key revoked")

	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return secretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
