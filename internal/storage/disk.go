package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
)

// refPrefix is the leading path segment of every disk reference. The server
// mounts the upload directory under the same prefix, so a stored reference
// doubles as the URL path the asset is served from.
const refPrefix = "uploads/"

// DiskStore is an ObjectStore backed by a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload directory %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the content to a new file named by a generated xid, keeping
// only the extension of the client-supplied filename. Client names are never
// trusted as paths.
func (s *DiskStore) Save(_ context.Context, r io.Reader, filename string) (string, error) {
	name := xid.New().String() + sanitizeExt(filename)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("storage: creating file %s: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: writing file %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("storage: closing file %s: %w", name, err)
	}

	return refPrefix + name, nil
}

// Remove deletes the file behind a reference. An already-missing file is
// treated as success so that delete retries stay idempotent.
func (s *DiskStore) Remove(_ context.Context, ref string) error {
	name := strings.TrimPrefix(ref, refPrefix)

	// path.Base strips any directory components a hostile reference could
	// smuggle in; references we hand out never contain subdirectories.
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("storage: invalid asset reference %q", ref)
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", name, err)
	}
	return nil
}

// sanitizeExt returns a safe file extension for the given client filename.
// Anything that doesn't look like a short alphanumeric extension is dropped.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
