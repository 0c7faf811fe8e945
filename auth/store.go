package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/natsclient"
)

// UserUpdateFunc mutates a user record inside a store update.
type UserUpdateFunc func(user *User) error

// UserStore persists account records keyed by user id.
type UserStore interface {
	// Create stores a new user; the id must not already exist.
	Create(ctx context.Context, user User) error

	// Get returns the user with the given id, or ErrKeyNotFound.
	Get(ctx context.Context, id string) (User, error)

	// Update applies fn to the stored record atomically.
	Update(ctx context.Context, id string, fn UserUpdateFunc) (User, error)

	// Delete removes the user, or ErrKeyNotFound when absent.
	Delete(ctx context.Context, id string) error

	// List returns all users in ascending id order.
	List(ctx context.Context) ([]User, error)
}

// KVUserStore keeps accounts in a NATS KV bucket.
type KVUserStore struct {
	bucket  jetstream.KeyValue
	kvStore *natsclient.KVStore
}

// NewKVUserStore creates the user bucket if needed.
func NewKVUserStore(client *natsclient.Client, bucketName string) (*KVUserStore, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "UserStore", "NewKVUserStore", "nats client is nil")
	}

	bucket, err := client.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Dashboard user accounts",
		History:     5,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "UserStore", "NewKVUserStore", "create KV bucket")
	}

	return &KVUserStore{
		bucket:  bucket,
		kvStore: client.NewKVStore(bucket),
	}, nil
}

func (s *KVUserStore) Create(ctx context.Context, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.WrapFatal(err, "UserStore", "Create", "marshal user")
	}

	if _, err := s.kvStore.Create(ctx, user.ID, data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(errors.ErrAccountExists, "UserStore", "Create", "id already exists")
		}
		return errors.WrapTransient(err, "UserStore", "Create", "create in KV")
	}
	return nil
}

func (s *KVUserStore) Get(ctx context.Context, id string) (User, error) {
	entry, err := s.kvStore.Get(ctx, id)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return User{}, errors.WrapInvalid(errors.ErrKeyNotFound, "UserStore", "Get", "lookup "+id)
		}
		return User{}, errors.WrapTransient(err, "UserStore", "Get", "get from KV")
	}

	var user User
	if err := json.Unmarshal(entry.Value, &user); err != nil {
		return User{}, errors.WrapFatal(err, "UserStore", "Get", "unmarshal user")
	}
	return user, nil
}

func (s *KVUserStore) Update(ctx context.Context, id string, fn UserUpdateFunc) (User, error) {
	var written User
	err := s.kvStore.UpdateWithRetry(ctx, id, func(current []byte) ([]byte, error) {
		if len(current) == 0 {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "UserStore", "Update", "lookup "+id)
		}

		var user User
		if err := json.Unmarshal(current, &user); err != nil {
			return nil, errors.WrapFatal(err, "UserStore", "Update", "unmarshal user")
		}
		if err := fn(&user); err != nil {
			return nil, err
		}

		written = user
		return json.Marshal(user)
	})
	if err != nil {
		if errors.IsInvalid(err) {
			return User{}, err
		}
		return User{}, errors.WrapTransient(err, "UserStore", "Update", "CAS update")
	}
	return written, nil
}

func (s *KVUserStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kvStore.Delete(ctx, id); err != nil {
		return errors.WrapTransient(err, "UserStore", "Delete", "delete from KV")
	}
	return nil
}

func (s *KVUserStore) List(ctx context.Context) ([]User, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return []User{}, nil
		}
		return nil, errors.WrapTransient(err, "UserStore", "List", "list KV keys")
	}
	sort.Strings(keys)

	users := make([]User, 0, len(keys))
	for _, key := range keys {
		user, err := s.Get(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// MemUserStore is the in-memory UserStore used by tests.
type MemUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemUserStore creates an empty in-memory user store.
func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[string]User)}
}

func (s *MemUserStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return errors.WrapInvalid(errors.ErrAccountExists, "UserStore", "Create", "id already exists")
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemUserStore) Get(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	user, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return User{}, errors.WrapInvalid(errors.ErrKeyNotFound, "UserStore", "Get", "lookup "+id)
	}
	return user, nil
}

func (s *MemUserStore) Update(_ context.Context, id string, fn UserUpdateFunc) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, errors.WrapInvalid(errors.ErrKeyNotFound, "UserStore", "Update", "lookup "+id)
	}
	if err := fn(&user); err != nil {
		return User{}, err
	}
	s.users[id] = user
	return user, nil
}

func (s *MemUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "UserStore", "Delete", "lookup "+id)
	}
	delete(s.users, id)
	return nil
}

func (s *MemUserStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		users = append(users, s.users[id])
	}
	return users, nil
}
