package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/weeb-foss/cdn/internal/auth"
	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/middleware"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "username is required"})
		return
	}

	user, err := s.creds.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, userToPayload(user))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}

	user, err := s.creds.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, userToPayload(user))
}

type updateUserRequest struct {
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	NewPassword     *string `json:"new_password"`
	CurrentPassword *string `json:"current_password"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if caller.ID != id {
		writeError(w, auth.ErrForbidden)
		return
	}

	var req updateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}

	user, err := s.creds.Update(r.Context(), id, auth.UserUpdate{
		Username:        req.Username,
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, userToPayload(user))
}

type issuedKeyPayload struct {
	ID        int64     `json:"id"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	key, secret, err := s.keys.Issue(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// The plaintext secret appears in this response and nowhere else.
	writeData(w, http.StatusCreated, issuedKeyPayload{
		ID:        key.ID,
		Secret:    secret,
		CreatedAt: key.CreatedAt,
	})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	if err := s.keys.Revoke(r.Context(), id, caller.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	name := mux.Vars(r)["bucket"]

	bucket, err := s.registry.Create(r.Context(), name, caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, bucket)
}

func (s *Server) handleGetBucket(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionRead)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, bucket)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionAdmin)
	if !ok {
		return
	}

	if err := s.registry.Delete(r.Context(), bucket.ID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type putObjectRequest struct {
	Size int64 `json:"size"`
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionWrite)
	if !ok {
		return
	}

	var req putObjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}

	object, err := s.objects.Put(r.Context(), bucket.ID, mux.Vars(r)["path"], req.Size)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, object)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionRead)
	if !ok {
		return
	}

	object, err := s.objects.Get(r.Context(), bucket.ID, mux.Vars(r)["path"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, object)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionWrite)
	if !ok {
		return
	}

	if err := s.objects.Delete(r.Context(), bucket.ID, mux.Vars(r)["path"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	UserID     int64               `json:"user_id"`
	Permission database.Permission `json:"permission"`
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionAdmin)
	if !ok {
		return
	}

	var req grantRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	if !req.Permission.Valid() {
		writeJSON(w, http.StatusBadRequest, envelope{Status: http.StatusBadRequest, Message: "invalid permission"})
		return
	}

	policy, err := s.engine.Grant(r.Context(), bucket.ID, req.UserID, req.Permission)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, policy)
}

func (s *Server) handleRevokeGrant(w http.ResponseWriter, r *http.Request) {
	bucket, ok := s.authorize(w, r, database.PermissionAdmin)
	if !ok {
		return
	}

	userID, _ := strconv.ParseInt(mux.Vars(r)["user"], 10, 64)
	if err := s.engine.Revoke(r.Context(), bucket.ID, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// authorize resolves the bucket named in the route and asks the engine
// whether the caller may perform action on it. A missing bucket answers
// 404, an unauthorized caller 403; on success the bucket is returned for
// the handler to act on.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, action database.Permission) (*database.Bucket, bool) {
	caller := middleware.UserFromContext(r.Context())

	bucket, err := s.registry.Get(r.Context(), mux.Vars(r)["bucket"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	decision, err := s.engine.Authorize(r.Context(), caller.ID, bucket.ID, action)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !decision.Allowed {
		writeDeny(w)
		return nil, false
	}

	return bucket, true
}
