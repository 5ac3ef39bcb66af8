// Package blob provides object storage for source documents and pipeline
// artifacts (page backgrounds, OCR payloads, previews, rendered outputs).
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store reads and writes binary artifacts by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
