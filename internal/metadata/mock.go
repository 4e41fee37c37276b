package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory implementation of the Store interface for testing.
type MockStore struct {
	mu     sync.RWMutex
	data   map[string]KV
	closed bool

	// FailPut, when set, is returned by every Put call. Tests use it to
	// simulate a metadata outage.
	FailPut error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]KV)}
}

func (s *MockStore) Get(ctx context.Context, key string) (GetResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return GetResult{}, ErrStoreClosed
	}

	kv, ok := s.data[key]
	if !ok {
		return GetResult{Exists: false}, nil
	}
	return GetResult{Value: kv.Value, Version: kv.Version, Exists: true}, nil
}

func (s *MockStore) Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	if s.FailPut != nil {
		return 0, s.FailPut
	}

	current, exists := s.data[key]

	if expected := ExtractExpectedVersion(opts); expected != nil {
		if *expected == 0 {
			if exists {
				return 0, ErrVersionMismatch
			}
		} else if !exists || current.Version != *expected {
			return 0, ErrVersionMismatch
		}
	}

	next := current.Version + 1
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = KV{Key: key, Value: cp, Version: next}
	return next, nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	delete(s.data, key)
	return nil
}

func (s *MockStore) List(ctx context.Context, prefix string, limit int) ([]KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var kvs []KV
	for key, kv := range s.data {
		if strings.HasPrefix(key, prefix) {
			kvs = append(kvs, kv)
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })

	if limit > 0 && len(kvs) > limit {
		kvs = kvs[:limit]
	}
	return kvs, nil
}

func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored keys. Test helper.
func (s *MockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ Store = (*MockStore)(nil)
