package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tessera-io/tessera/internal/metadata"
	"github.com/tessera-io/tessera/internal/metadata/keys"
)

// MetaStore reads stream schemas from the shared metadata store.
type MetaStore struct {
	meta metadata.Store
}

// NewMetaStore creates a schema reader over the metadata store.
func NewMetaStore(meta metadata.Store) *MetaStore {
	return &MetaStore{meta: meta}
}

func (s *MetaStore) LatestSchema(ctx context.Context, org, streamType, stream string) (Schema, error) {
	result, err := s.meta.Get(ctx, keys.StreamSchema(org, streamType, stream))
	if err != nil {
		return Schema{}, fmt.Errorf("stream: get schema: %w", err)
	}
	if !result.Exists {
		return Schema{}, fmt.Errorf("%w: %s/%s/%s", ErrStreamNotFound, org, streamType, stream)
	}

	var schema Schema
	if err := json.Unmarshal(result.Value, &schema); err != nil {
		return Schema{}, fmt.Errorf("stream: decode schema for %s/%s/%s: %w", org, streamType, stream, err)
	}
	return schema, nil
}

func (s *MetaStore) IsDeleting(ctx context.Context, org, streamType, stream string) (bool, error) {
	result, err := s.meta.Get(ctx, keys.StreamDeleting(org, streamType, stream))
	if err != nil {
		return false, fmt.Errorf("stream: get deleting marker: %w", err)
	}
	return result.Exists, nil
}

var _ Store = (*MetaStore)(nil)
