// Package store implements the content-addressed blob store backing both
// sides of a transfer. Blob contents live as files named by their sha256
// hash, written via temp-file-and-rename so a partial write is never
// addressable. Sizes and temporary tags live in a BadgerDB alongside the
// blob files; a blob with no tag and no durable reference is reclaimable.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/flitshare/flit/pkg/blob"
)

var (
	// ErrNotFound indicates a blob that is not present in the store.
	ErrNotFound = errors.New("blob not found")
	// ErrHashMismatch indicates received content that did not verify
	// against its expected hash.
	ErrHashMismatch = errors.New("content hash mismatch")
)

const (
	blobKeyPrefix = "blob:"
	tagKeyPrefix  = "tag:"
)

// ImportMode controls how file contents enter the store.
type ImportMode int

const (
	// ImportCopy always copies the file into the store.
	ImportCopy ImportMode = iota
	// ImportTryReference hard-links the file into the store when the
	// filesystem allows it, falling back to a copy. A performance hint,
	// not a correctness requirement.
	ImportTryReference
)

// ExportMode controls how blob contents leave the store.
type ExportMode int

const (
	// ExportCopy always copies the blob to the destination.
	ExportCopy ExportMode = iota
	// ExportTryReference hard-links the blob to the destination when
	// possible, falling back to a copy.
	ExportTryReference
)

// Store is a content-addressed blob store rooted at a directory. It is safe
// for concurrent use; ingestion workers share one handle.
type Store struct {
	dir string
	db  *badger.DB
}

// Open opens (or creates) a store rooted at dir.
func Open(dir string) (*Store, error) {
	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	opts := badger.DefaultOptions(filepath.Join(dir, "meta")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	return &Store{dir: dir, db: db}, nil
}

// Close closes the metadata database.
func (s *Store) Close() error {
	return s.db.Close()
}

// blobPath returns the on-disk path for a hash.
func (s *Store) blobPath(h blob.Hash) string {
	return filepath.Join(s.dir, "blobs", h.Hex())
}

// Has reports whether a blob is present.
func (s *Store) Has(h blob.Hash) bool {
	_, err := os.Stat(s.blobPath(h))
	return err == nil
}

// SizeOf returns the recorded size of a blob, falling back to a stat of
// the blob file when the metadata entry is missing.
func (s *Store) SizeOf(h blob.Hash) (int64, error) {
	var size int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(h))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("malformed size record for %s", h)
			}
			size = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		info, statErr := os.Stat(s.blobPath(h))
		if statErr != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return info.Size(), nil
	}
	if err != nil {
		return 0, err
	}
	return size, nil
}

// GetBlob reads a blob's full contents.
func (s *Store) GetBlob(h blob.Hash) ([]byte, error) {
	data, err := os.ReadFile(s.blobPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return nil, err
	}
	return data, nil
}

// BlobReader opens a blob for streaming reads and returns its size.
func (s *Store) BlobReader(h blob.Hash) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.blobPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// recordSize stores the size metadata for a blob.
func (s *Store) recordSize(h blob.Hash, size int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(size))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(h), val)
	})
}

func blobKey(h blob.Hash) []byte {
	return []byte(blobKeyPrefix + h.Hex())
}
