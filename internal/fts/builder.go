package fts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tessera-io/tessera/internal/objectstore"
)

// IndexSuffix is appended to the merged file's key to form the index key.
const IndexSuffix = ".idx"

// indexContentType is the MIME type used for uploaded index blocks.
const indexContentType = "application/octet-stream"

// block is the serialized index layout.
type block struct {
	Version int              `json:"version"`
	Codec   string           `json:"codec"`
	Fields  []string         `json:"fields"`
	Tokens  map[string][]int `json:"tokens"`
}

// Builder constructs and uploads full-text index blocks.
type Builder struct {
	codec Codec
}

// NewBuilder creates a Builder using the given codec.
func NewBuilder(codec Codec) *Builder {
	return &Builder{codec: codec}
}

// Build tokenizes the given fields of each row and serializes the
// resulting inverted index with the builder's codec.
func (b *Builder) Build(rows []map[string]any, fields []string) ([]byte, error) {
	tokens := make(map[string][]int)
	for i, row := range rows {
		for _, field := range fields {
			value, ok := row[field].(string)
			if !ok {
				continue
			}
			for _, token := range tokenize(value) {
				positions := tokens[token]
				if len(positions) > 0 && positions[len(positions)-1] == i {
					continue
				}
				tokens[token] = append(positions, i)
			}
		}
	}

	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	raw, err := json.Marshal(block{Version: 1, Codec: b.codec.Name(), Fields: sorted, Tokens: tokens})
	if err != nil {
		return nil, fmt.Errorf("fts: encode index: %w", err)
	}
	return b.codec.Compress(raw)
}

// Upload builds the index for a merged file's rows and uploads it next to
// the file. Returns the uploaded size, or 0 when no fields are indexed.
func (b *Builder) Upload(ctx context.Context, store objectstore.Store, fileKey string, rows []map[string]any, fields []string) (int64, error) {
	if len(fields) == 0 || len(rows) == 0 {
		return 0, nil
	}
	data, err := b.Build(rows, fields)
	if err != nil {
		return 0, err
	}
	key := fileKey + IndexSuffix
	if err := store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), indexContentType); err != nil {
		return 0, fmt.Errorf("fts: upload %s: %w", key, err)
	}
	return int64(len(data)), nil
}

func tokenize(value string) []string {
	return strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
