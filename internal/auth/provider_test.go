package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weeb-foss/cdn/internal/database"
)

func newProviderFixture(t *testing.T) (*CredentialProvider, *database.MemStore) {
	t.Helper()
	store := database.NewMemStore()
	return NewCredentialProvider(NewCredentialStore(store), NewKeyManager(store)), store
}

func TestAuthenticate_Basic(t *testing.T) {
	provider, store := newProviderFixture(t)

	creds := NewCredentialStore(store)
	user, err := creds.Register(context.Background(), "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/buckets/media", nil)
	req.SetBasicAuth("alice", "hunter22")

	resolved, err := provider.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestAuthenticate_BasicWrongPassword(t *testing.T) {
	provider, store := newProviderFixture(t)

	creds := NewCredentialStore(store)
	_, err := creds.Register(context.Background(), "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/buckets/media", nil)
	req.SetBasicAuth("alice", "wrong")

	_, err = provider.Authenticate(req)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_Bearer(t *testing.T) {
	provider, store := newProviderFixture(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "alice", "alice@example.com", nil)
	require.NoError(t, err)
	_, secret, err := NewKeyManager(store).Issue(ctx, user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/buckets/media", nil)
	req.Header.Set("Authorization", "Bearer "+secret)

	resolved, err := provider.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestAuthenticate_Rejections(t *testing.T) {
	provider, _ := newProviderFixture(t)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"empty bearer", "Bearer "},
		{"unknown scheme", "Token abc123"},
		{"bare secret without scheme", "cdnk_abc123"},
		{"unknown bearer secret", "Bearer cdnk_abc123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/buckets/media", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			_, err := provider.Authenticate(req)
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}
