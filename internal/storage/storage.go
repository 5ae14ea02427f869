// Package storage persists uploaded assets (profile and place images).
//
// Records store only an opaque reference string returned by Save. The disk
// backend returns a path under "uploads/" that the server exposes as a static
// route; the S3 backend returns the object key. Either way the reference is
// what Remove takes back when the owning record is deleted.
package storage

import (
	"context"
	"io"
)

// ObjectStore saves and removes uploaded assets.
type ObjectStore interface {
	// Save persists the content of r and returns a reference to it.
	// filename is the client-supplied name, used only for its extension.
	Save(ctx context.Context, r io.Reader, filename string) (string, error)

	// Remove deletes the asset behind a reference previously returned by
	// Save. Removing a reference that no longer exists is not an error.
	Remove(ctx context.Context, ref string) error
}
