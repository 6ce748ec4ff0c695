package object

import (
	"context"
	"io"
)

// ObjectStore saves and retrieves binary objects by key. Survey exports are written through it.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
