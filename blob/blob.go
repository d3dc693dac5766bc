// Package blob defines the object-storage contract the ingestion pipeline
// reads file bytes through. Uploads are performed by the web tier; this core
// only fetches, but Put and Delete are part of the contract so local and
// test backends can be populated.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested key does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store provides access to raw file bytes by key.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// Get fetches the full contents stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, overwriting any previous contents.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the contents stored under key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
