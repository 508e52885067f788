package blob

import "context"

// Store abstracts S3-compatible object storage. Both deletes are
// idempotent: removing absent objects is success.
type Store interface {
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under the prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
