package stream

import (
	"context"
	"fmt"
	"sync"
)

// MockStore is an in-memory Store for testing.
type MockStore struct {
	mu       sync.RWMutex
	schemas  map[string]Schema
	deleting map[string]bool
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		schemas:  make(map[string]Schema),
		deleting: make(map[string]bool),
	}
}

func mockKey(org, streamType, stream string) string {
	return org + "/" + streamType + "/" + stream
}

// SetSchema registers a schema.
func (s *MockStore) SetSchema(schema Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[mockKey(schema.Org, schema.StreamType, schema.Stream)] = schema
}

// SetDeleting marks a stream as deleting.
func (s *MockStore) SetDeleting(org, streamType, stream string, deleting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleting[mockKey(org, streamType, stream)] = deleting
}

func (s *MockStore) LatestSchema(ctx context.Context, org, streamType, stream string) (Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[mockKey(org, streamType, stream)]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s/%s/%s", ErrStreamNotFound, org, streamType, stream)
	}
	return schema, nil
}

func (s *MockStore) IsDeleting(ctx context.Context, org, streamType, stream string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleting[mockKey(org, streamType, stream)], nil
}

var _ Store = (*MockStore)(nil)
