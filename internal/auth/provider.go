package auth

import (
	"net/http"
	"strings"

	"github.com/weeb-foss/cdn/internal/database"
)

// Provider resolves an incoming request's credential to a user identity.
type Provider interface {
	Authenticate(r *http.Request) (*database.User, error)
}

// CredentialProvider accepts HTTP Basic (username/password) and Bearer
// (API key secret) authorization.
type CredentialProvider struct {
	creds *CredentialStore
	keys  *KeyManager
}

// NewCredentialProvider creates a provider over the two credential sources.
func NewCredentialProvider(creds *CredentialStore, keys *KeyManager) *CredentialProvider {
	return &CredentialProvider{creds: creds, keys: keys}
}

// Authenticate inspects the Authorization header and verifies the carried
// credential. All failures collapse into ErrInvalidCredential.
func (p *CredentialProvider) Authenticate(r *http.Request) (*database.User, error) {
	if username, password, ok := r.BasicAuth(); ok {
		return p.creds.Verify(r.Context(), username, password)
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return p.keys.Validate(r.Context(), token)
	}

	return nil, ErrInvalidCredential
}
