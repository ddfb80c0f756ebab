package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weeb-foss/cdn/internal/database"
)

func strptr(s string) *string { return &s }

var errBackendDown = errors.New("connection refused")

// downStore simulates a backend outage on every lookup.
type downStore struct {
	database.Store
}

func (downStore) GetUserByUsername(context.Context, string) (*database.User, error) {
	return nil, errBackendDown
}

func (downStore) GetUserByID(context.Context, int64) (*database.User, error) {
	return nil, errBackendDown
}

func (downStore) GetAPIKeyByDigest(context.Context, string) (*database.APIKey, error) {
	return nil, errBackendDown
}

func newCredentialFixture(t *testing.T) (*CredentialStore, *database.MemStore) {
	t.Helper()
	store := database.NewMemStore()
	return NewCredentialStore(store), store
}

func TestRegister_HashesPassword(t *testing.T) {
	creds, store := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	require.NotNil(t, user.PasswordHash)
	assert.NotContains(t, *user.PasswordHash, "hunter22")

	stored, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.PasswordHash)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = creds.Register(ctx, "alice", "other@example.com", "hunter22")
	assert.ErrorIs(t, err, database.ErrConflict)
}

func TestRegister_EmptyPasswordMeansNoPassword(t *testing.T) {
	creds, _ := newCredentialFixture(t)

	user, err := creds.Register(context.Background(), "service", "svc@example.com", "")
	require.NoError(t, err)
	assert.Nil(t, user.PasswordHash)
}

func TestVerify_Success(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	registered, err := creds.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	user, err := creds.Verify(ctx, "alice", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestVerify_ByID(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	registered, err := creds.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	user, err := creds.Verify(ctx, "1", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestVerify_Failures(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	_, err = creds.Register(ctx, "service", "svc@example.com", "")
	require.NoError(t, err)

	cases := []struct {
		name     string
		user     string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "nobody", "hunter22"},
		{"no password set", "service", "anything"},
		{"empty password against hash", "alice", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := creds.Verify(ctx, tc.user, tc.password)
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestUpdate_SetPasswordWhenNoneSet(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "service", "svc@example.com", "")
	require.NoError(t, err)

	updated, err := creds.Update(ctx, user.ID, UserUpdate{NewPassword: strptr("first-password")})
	require.NoError(t, err)
	require.NotNil(t, updated.PasswordHash)

	_, err = creds.Verify(ctx, "service", "first-password")
	assert.NoError(t, err)
}

func TestUpdate_RotatePassword(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	before, err := creds.Update(ctx, user.ID, UserUpdate{})
	require.NoError(t, err)

	updated, err := creds.Update(ctx, user.ID, UserUpdate{
		NewPassword:     strptr("new-password"),
		CurrentPassword: strptr("old-password"),
	})
	require.NoError(t, err)

	// Fresh salt on every change: the stored hash must differ even
	// though the account is the same.
	assert.NotEqual(t, *before.PasswordHash, *updated.PasswordHash)

	_, err = creds.Verify(ctx, "alice", "new-password")
	assert.NoError(t, err)
	_, err = creds.Verify(ctx, "alice", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestUpdate_NewPasswordRequiresProofWhenPasswordSet(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	_, err = creds.Update(ctx, user.ID, UserUpdate{NewPassword: strptr("sneaky")})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = creds.Update(ctx, user.ID, UserUpdate{
		NewPassword:     strptr("sneaky"),
		CurrentPassword: strptr("wrong"),
	})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// The old password must still stand after both rejections.
	_, err = creds.Verify(ctx, "alice", "old-password")
	assert.NoError(t, err)
}

func TestUpdate_SuppliedCurrentPasswordIsAlwaysChecked(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	// Changing only the email, but offering a wrong proof: the whole
	// update is rejected.
	_, err = creds.Update(ctx, user.ID, UserUpdate{
		Email:           strptr("new@example.com"),
		CurrentPassword: strptr("wrong"),
	})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	unchanged, err := creds.Verify(ctx, "alice", "old-password")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", unchanged.Email)
}

func TestUpdate_ProfileFieldsWithoutProof(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	// No current_password supplied and no password change: verification
	// is skipped and the profile update goes through.
	updated, err := creds.Update(ctx, user.ID, UserUpdate{
		Username: strptr("alice2"),
		Email:    strptr("alice2@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "alice2@example.com", updated.Email)

	_, err = creds.Verify(ctx, "alice2", "old-password")
	assert.NoError(t, err)
}

func TestUpdate_UnsetFieldsLeftAsIs(t *testing.T) {
	creds, _ := newCredentialFixture(t)
	ctx := context.Background()

	user, err := creds.Register(ctx, "alice", "alice@example.com", "old-password")
	require.NoError(t, err)

	updated, err := creds.Update(ctx, user.ID, UserUpdate{Email: strptr("")})
	require.NoError(t, err)

	// An explicit empty string is a value; a nil field is not.
	assert.Equal(t, "", updated.Email)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, user.CreatedAt, updated.CreatedAt)
}

// A backend outage must not read as a wrong password.
func TestVerify_BackendFailureIsNotACredentialMiss(t *testing.T) {
	creds := NewCredentialStore(downStore{Store: database.NewMemStore()})

	_, err := creds.Verify(context.Background(), "alice", "hunter22")
	assert.ErrorIs(t, err, errBackendDown)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
}

func TestUpdate_UnknownUser(t *testing.T) {
	creds, _ := newCredentialFixture(t)

	_, err := creds.Update(context.Background(), 999, UserUpdate{Email: strptr("x@example.com")})
	assert.ErrorIs(t, err, database.ErrNotFound)
}
