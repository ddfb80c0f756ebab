package database

import (
	"time"
)

// User represents an account in the database. PasswordHash is nil when the
// account has no password set (API-key-only accounts created by an admin).
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// APIKey represents a bearer token owned by a user. SecretDigest holds the
// SHA-256 digest of the issued secret; the plaintext is returned once at
// issue time and never persisted.
type APIKey struct {
	ID           int64      `db:"id"`
	UserID       int64      `db:"user_id"`
	SecretDigest string     `db:"secret"`
	CreatedAt    time.Time  `db:"created_at"`
	LastUsedAt   *time.Time `db:"last_used_at"`
}

// Bucket is a namespace owning a set of objects. The owner implicitly holds
// full permission on the bucket; that grant is never materialized as an
// AccessPolicy row.
type Bucket struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	OwnerID   int64     `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Object is the metadata row for a stored unit of content. (BucketID, Path)
// is unique and LastModifiedAt never precedes CreatedAt.
type Object struct {
	ID             int64     `db:"id"`
	BucketID       int64     `db:"bucket_id"`
	Path           string    `db:"path"`
	Size           int64     `db:"size"`
	CreatedAt      time.Time `db:"created_at"`
	LastModifiedAt time.Time `db:"last_modified_at"`
}

// Permission is the ordered grant level stored in access_policies.
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionAdmin Permission = "ADMIN"
)

var permissionRank = map[Permission]int{
	PermissionRead:  1,
	PermissionWrite: 2,
	PermissionAdmin: 3,
}

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	_, ok := permissionRank[p]
	return ok
}

// Rank returns the total order of p: ADMIN > WRITE > READ. Unknown values
// rank below READ so a corrupt row can never satisfy a check.
func (p Permission) Rank() int {
	return permissionRank[p]
}

// Allows reports whether holding p satisfies a request for action.
func (p Permission) Allows(action Permission) bool {
	return p.Rank() >= action.Rank() && action.Valid()
}

// AccessPolicy is an explicit grant of a user on a bucket. It cascades to
// every object in the bucket; there are no per-object grants.
type AccessPolicy struct {
	ID         int64      `db:"id"`
	BucketID   int64      `db:"bucket_id"`
	UserID     int64      `db:"user_id"`
	Permission Permission `db:"permission"`
	CreatedAt  time.Time  `db:"created_at"`
}
