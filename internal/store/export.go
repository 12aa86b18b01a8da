package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flitshare/flit/pkg/blob"
)

// Export writes a blob's contents to dest, creating parent directories as
// needed. With ExportTryReference the store hard-links the blob file into
// place when the filesystem allows it, falling back to a copy.
func (s *Store) Export(h blob.Hash, dest string, mode ExportMode) error {
	src := s.blobPath(h)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if mode == ExportTryReference {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Link(src, dest); err == nil {
			return nil
		}
	}
	return copyFile(src, dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
