// Package storage abstracts the durable object store that holds masters,
// renditions, package segments, and subtitle files.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the durable blob store the pipeline writes to. Keys are
// deterministic string paths; Upload overwrites and Delete is idempotent, so
// re-running a pipeline stage against the same key is safe.
type ObjectStore interface {
	// Upload stores body under key, replacing any existing object.
	Upload(ctx context.Context, key string, body io.Reader) error

	// Download streams the object at key into w.
	Download(ctx context.Context, key string, w io.Writer) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
