package database

import "context"

// Store defines the persistence operations the core depends on. The SQL
// implementation backs production; MemStore backs tests and local runs.
// All uniqueness is enforced atomically by the implementation, never
// check-then-insert.
type Store interface {
	// Users
	CreateUser(ctx context.Context, username, email string, passwordHash *string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpdateUser applies fn to the current row inside a single transaction.
	// fn sees the freshest committed state and may return an error to abort;
	// the abort error is returned unwrapped so callers can match sentinels.
	UpdateUser(ctx context.Context, id int64, fn func(*User) error) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// API keys
	CreateAPIKey(ctx context.Context, userID int64, secretDigest string) (*APIKey, error)
	GetAPIKeyByDigest(ctx context.Context, secretDigest string) (*APIKey, error)
	GetAPIKeyByID(ctx context.Context, id int64) (*APIKey, error)
	TouchAPIKey(ctx context.Context, id int64) error
	DeleteAPIKey(ctx context.Context, id int64) error

	// Buckets
	CreateBucket(ctx context.Context, name string, ownerID int64) (*Bucket, error)
	GetBucketByID(ctx context.Context, id int64) (*Bucket, error)
	GetBucketByName(ctx context.Context, name string) (*Bucket, error)
	// DeleteBucket removes an empty bucket and its grants; ErrConflict
	// while objects remain so no object can dangle.
	DeleteBucket(ctx context.Context, id int64) error

	// Objects
	UpsertObject(ctx context.Context, bucketID int64, path string, size int64) (*Object, error)
	GetObject(ctx context.Context, bucketID int64, path string) (*Object, error)
	DeleteObject(ctx context.Context, bucketID int64, path string) error
	CountObjects(ctx context.Context, bucketID int64) (int64, error)

	// Access policies
	// UpsertPolicy implements replace-on-upgrade, insert-if-new: an existing
	// equal-or-higher grant for the pair is kept untouched.
	UpsertPolicy(ctx context.Context, bucketID, userID int64, perm Permission) (*AccessPolicy, error)
	ListPolicies(ctx context.Context, bucketID, userID int64) ([]AccessPolicy, error)
	DeletePolicies(ctx context.Context, bucketID, userID int64) error

	Close() error
}
