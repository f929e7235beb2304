// Package storage defines the blob store abstraction used for cached crawl
// inputs. Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by GetObject when no object exists at the path.
var ErrNotExist = errors.New("object does not exist")

// BlobStore reads and writes whole objects.
type BlobStore interface {
	// PutObject writes data at path and returns a URI for the object.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the object at path, or ErrNotExist.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
