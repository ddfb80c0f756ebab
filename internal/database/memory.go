package database

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and local development runs.
// A single mutex stands in for the backend's transactional isolation, so
// every operation is atomic exactly like its SQL counterpart.
type MemStore struct {
	mu sync.Mutex

	users    map[int64]*User
	keys     map[int64]*APIKey
	buckets  map[int64]*Bucket
	objects  map[int64]*Object
	policies map[int64]*AccessPolicy

	nextID int64
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[int64]*User),
		keys:     make(map[int64]*APIKey),
		buckets:  make(map[int64]*Bucket),
		objects:  make(map[int64]*Object),
		policies: make(map[int64]*AccessPolicy),
	}
}

func (m *MemStore) next() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemStore) CreateUser(_ context.Context, username, email string, passwordHash *string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return nil, ErrConflict
		}
	}

	user := &User{
		ID:           m.next(),
		Username:     username,
		Email:        email,
		PasswordHash: copyString(passwordHash),
		CreatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	return copyUser(user), nil
}

func (m *MemStore) GetUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

func (m *MemStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) UpdateUser(_ context.Context, id int64, fn func(*User) error) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := copyUser(user)
	if err := fn(updated); err != nil {
		return nil, err
	}

	if updated.Username != user.Username {
		for _, other := range m.users {
			if other.ID != id && other.Username == updated.Username {
				return nil, ErrConflict
			}
		}
	}

	m.users[id] = copyUser(updated)
	return updated, nil
}

func (m *MemStore) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *copyUser(u))
	}
	return users, nil
}

func (m *MemStore) CreateAPIKey(_ context.Context, userID int64, secretDigest string) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, ErrNotFound
	}
	for _, k := range m.keys {
		if k.SecretDigest == secretDigest {
			return nil, ErrConflict
		}
	}

	key := &APIKey{
		ID:           m.next(),
		UserID:       userID,
		SecretDigest: secretDigest,
		CreatedAt:    time.Now(),
	}
	m.keys[key.ID] = key
	return copyKey(key), nil
}

func (m *MemStore) GetAPIKeyByDigest(_ context.Context, secretDigest string) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.keys {
		if k.SecretDigest == secretDigest {
			return copyKey(k), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) GetAPIKeyByID(_ context.Context, id int64) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyKey(key), nil
}

func (m *MemStore) TouchAPIKey(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	if key.LastUsedAt == nil || now.After(*key.LastUsedAt) {
		key.LastUsedAt = &now
	}
	return nil
}

func (m *MemStore) DeleteAPIKey(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[id]; !ok {
		return ErrNotFound
	}
	delete(m.keys, id)
	return nil
}

func (m *MemStore) CreateBucket(_ context.Context, name string, ownerID int64) (*Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[ownerID]; !ok {
		return nil, ErrNotFound
	}
	for _, b := range m.buckets {
		if b.Name == name {
			return nil, ErrConflict
		}
	}

	bucket := &Bucket{
		ID:        m.next(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
	m.buckets[bucket.ID] = bucket
	return copyBucket(bucket), nil
}

func (m *MemStore) GetBucketByID(_ context.Context, id int64) (*Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBucket(bucket), nil
}

func (m *MemStore) GetBucketByName(_ context.Context, name string) (*Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.buckets {
		if b.Name == name {
			return copyBucket(b), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) DeleteBucket(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[id]; !ok {
		return ErrNotFound
	}
	for _, o := range m.objects {
		if o.BucketID == id {
			return ErrConflict
		}
	}
	for pid, p := range m.policies {
		if p.BucketID == id {
			delete(m.policies, pid)
		}
	}
	delete(m.buckets, id)
	return nil
}

func (m *MemStore) UpsertObject(_ context.Context, bucketID int64, path string, size int64) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.buckets[bucketID]; !ok {
		return nil, ErrNotFound
	}

	now := time.Now()
	for _, o := range m.objects {
		if o.BucketID == bucketID && o.Path == path {
			o.Size = size
			o.LastModifiedAt = now
			return copyObject(o), nil
		}
	}

	object := &Object{
		ID:             m.next(),
		BucketID:       bucketID,
		Path:           path,
		Size:           size,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	m.objects[object.ID] = object
	return copyObject(object), nil
}

func (m *MemStore) GetObject(_ context.Context, bucketID int64, path string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.objects {
		if o.BucketID == bucketID && o.Path == path {
			return copyObject(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) DeleteObject(_ context.Context, bucketID int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, o := range m.objects {
		if o.BucketID == bucketID && o.Path == path {
			delete(m.objects, id)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemStore) CountObjects(_ context.Context, bucketID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, o := range m.objects {
		if o.BucketID == bucketID {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) UpsertPolicy(_ context.Context, bucketID, userID int64, perm Permission) (*AccessPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !perm.Valid() {
		return nil, fmt.Errorf("invalid permission %q", perm)
	}
	if _, ok := m.buckets[bucketID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.users[userID]; !ok {
		return nil, ErrNotFound
	}

	for _, p := range m.policies {
		if p.BucketID == bucketID && p.UserID == userID && p.Permission.Rank() >= perm.Rank() {
			return copyPolicy(p), nil
		}
	}
	for id, p := range m.policies {
		if p.BucketID == bucketID && p.UserID == userID {
			delete(m.policies, id)
		}
	}

	policy := &AccessPolicy{
		ID:         m.next(),
		BucketID:   bucketID,
		UserID:     userID,
		Permission: perm,
		CreatedAt:  time.Now(),
	}
	m.policies[policy.ID] = policy
	return copyPolicy(policy), nil
}

func (m *MemStore) ListPolicies(_ context.Context, bucketID, userID int64) ([]AccessPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var policies []AccessPolicy
	for _, p := range m.policies {
		if p.BucketID == bucketID && p.UserID == userID {
			policies = append(policies, *copyPolicy(p))
		}
	}
	return policies, nil
}

func (m *MemStore) DeletePolicies(_ context.Context, bucketID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.policies {
		if p.BucketID == bucketID && p.UserID == userID {
			delete(m.policies, id)
		}
	}
	return nil
}

func (m *MemStore) Close() error {
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUser(u *User) *User {
	c := *u
	c.PasswordHash = copyString(u.PasswordHash)
	return &c
}

func copyKey(k *APIKey) *APIKey {
	c := *k
	c.LastUsedAt = copyTime(k.LastUsedAt)
	return &c
}

func copyBucket(b *Bucket) *Bucket {
	c := *b
	return &c
}

func copyObject(o *Object) *Object {
	c := *o
	return &c
}

func copyPolicy(p *AccessPolicy) *AccessPolicy {
	c := *p
	return &c
}
