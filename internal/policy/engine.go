// Package policy implements the access decision engine: it combines bucket
// ownership, explicit grants and the permission hierarchy into a single
// allow/deny answer.
package policy

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/weeb-foss/cdn/internal/database"
	"github.com/weeb-foss/cdn/internal/metrics"
)

// Decision is the engine's answer for one (user, bucket, action) question.
// Effective is the highest permission the user holds on the bucket; empty
// when the user holds none.
type Decision struct {
	Allowed   bool
	Effective database.Permission
}

// Engine evaluates authorization against the backend on every call. It
// holds no policy cache: grants and revocations take effect on the next
// check.
type Engine struct {
	store database.Store
	stats *metrics.Metrics
}

// NewEngine creates an engine over the given backend.
func NewEngine(store database.Store) *Engine {
	return &Engine{store: store, stats: metrics.New()}
}

// Authorize decides whether the user may perform action on the bucket.
// Ownership is a standing grant that satisfies any action before explicit
// grants are consulted. When the bucket does not exist the error is
// database.ErrNotFound, distinct from a deny, so the edge can answer 404
// rather than 403.
func (e *Engine) Authorize(ctx context.Context, userID, bucketID int64, action database.Permission) (Decision, error) {
	bucket, err := e.store.GetBucketByID(ctx, bucketID)
	if err != nil {
		return Decision{}, err
	}

	if bucket.OwnerID == userID {
		e.stats.RecordDecision(true)
		return Decision{Allowed: true, Effective: database.PermissionAdmin}, nil
	}

	policies, err := e.store.ListPolicies(ctx, bucketID, userID)
	if err != nil {
		return Decision{}, err
	}

	// The schema permits multiple rows per pair; the effective permission
	// is the maximum rank across them regardless of how they got there.
	var effective database.Permission
	for _, p := range policies {
		if p.Permission.Rank() > effective.Rank() {
			effective = p.Permission
		}
	}

	decision := Decision{
		Allowed:   effective.Allows(action),
		Effective: effective,
	}
	e.stats.RecordDecision(decision.Allowed)

	if !decision.Allowed {
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,
			"bucket_id": bucketID,
			"action":    action,
			"effective": effective,
		}).Debug("Authorization denied")
	}

	return decision, nil
}

// Grant records a permission for the user on the bucket. The caller is
// responsible for having checked its own ADMIN authority first; the engine
// does not re-derive the caller's identity. Repeated or weaker grants
// never downgrade an existing one.
func (e *Engine) Grant(ctx context.Context, bucketID, userID int64, perm database.Permission) (*database.AccessPolicy, error) {
	policy, err := e.store.UpsertPolicy(ctx, bucketID, userID, perm)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"bucket_id":  bucketID,
		"user_id":    userID,
		"permission": policy.Permission,
	}).Info("Permission granted")

	return policy, nil
}

// Revoke removes every grant the user holds on the bucket. Idempotent:
// revoking a grant that does not exist is not an error.
func (e *Engine) Revoke(ctx context.Context, bucketID, userID int64) error {
	if err := e.store.DeletePolicies(ctx, bucketID, userID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"bucket_id": bucketID,
		"user_id":   userID,
	}).Info("Permissions revoked")

	return nil
}
