// Package metadata defines the Store interface for durable compactor
// state: pending-delete records, removing markers, the file-list index
// and stream settings. The default implementation uses Oxia.
package metadata

import (
	"context"
	"errors"
)

// Common errors returned by Store operations.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("metadata: key not found")

	// ErrVersionMismatch is returned when the expected version does not match
	// the current version during a CAS (compare-and-set) operation.
	ErrVersionMismatch = errors.New("metadata: version mismatch")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// Version represents a key's version in the metadata store.
// Versions are monotonically increasing and are assigned by the store
// on each write. A zero version means the key has never been written.
type Version int64

// KV represents a key-value pair with its version.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// GetResult is the result of a Get operation.
type GetResult struct {
	Value   []byte
	Version Version
	Exists  bool
}

// PutOption configures a Put operation.
type PutOption func(*putOptions)

type putOptions struct {
	expectedVersion *Version
}

// WithExpectedVersion specifies the expected version for a CAS put.
// Version 0 means the key must not exist yet. If the current version
// does not match, the Put fails with ErrVersionMismatch.
func WithExpectedVersion(v Version) PutOption {
	return func(o *putOptions) {
		o.expectedVersion = &v
	}
}

// ExtractExpectedVersion extracts the expected version from Put options.
// Returns nil if no expected version was specified.
func ExtractExpectedVersion(opts []PutOption) *Version {
	var pOpts putOptions
	for _, opt := range opts {
		opt(&pOpts)
	}
	return pOpts.expectedVersion
}

// Store is the durable key-value interface the compactor relies on.
//
// Thread safety: implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key. A missing key is not an error:
	// the result has Exists == false.
	Get(ctx context.Context, key string) (GetResult, error)

	// Put stores a value, optionally guarded by an expected version.
	// Returns the new version.
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// Delete removes a key. Deleting a missing key succeeds silently.
	Delete(ctx context.Context, key string) error

	// List returns all key-value pairs whose key starts with prefix,
	// in lexicographic order. limit <= 0 means unlimited.
	List(ctx context.Context, prefix string, limit int) ([]KV, error)

	// Close releases resources held by the store.
	Close() error
}
