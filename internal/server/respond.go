package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/auth"
	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/security"
)

// envelope is the JSON response shape shared by every endpoint.
type envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// userPayload is the caller-visible projection of a user row. The password
// hash never leaves the server.
type userPayload struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func userToPayload(u *database.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithField("error", err).Error("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Status: status, Message: http.StatusText(status), Data: data})
}

// writeError maps core errors onto status codes. Messages stay generic:
// which username, bucket or key triggered the failure is never echoed back.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredential):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, security.ErrEmptyPath),
		errors.Is(err, security.ErrInvalidPath),
		errors.Is(err, security.ErrPathTraversal),
		errors.Is(err, security.ErrAbsolutePath):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
		logrus.WithField("error", err).Error("Request failed")
	}

	writeJSON(w, status, envelope{Status: status, Message: http.StatusText(status)})
}

// writeDeny answers an authorization denial. Deliberately the same body a
// Forbidden gets so denials and refused privileged operations read alike.
func writeDeny(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, envelope{
		Status:  http.StatusForbidden,
		Message: http.StatusText(http.StatusForbidden),
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
