// Package objectstore defines the Store interface for S3-compatible
// storage of merged files and their index blocks.
//
// The compactor only needs whole-object semantics: Put merged bytes,
// Head/Get to verify, Delete for cleanup. Range reads and multipart
// uploads belong to the query side and are not part of this interface.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission.
	ErrAccessDenied = errors.New("access denied")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Head", "Delete")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ContentType is the MIME type of the object.
	ContentType string

	// ETag is the entity tag assigned by the storage provider.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) of the last write.
	LastModified int64
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations must be safe for concurrent use and should return
// wrapped errors using [ObjectError] where appropriate.
type Store interface {
	// Put stores an object at the given key. The reader is consumed
	// until EOF; size must match the total bytes read.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get retrieves an entire object. The caller must close the result.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object. Deleting a non-existent object succeeds
	// silently, matching S3 behavior, which enables safe retries.
	Delete(ctx context.Context, key string) error

	// List returns objects matching the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	Close() error
}
