package store

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/flitshare/flit/internal/bufpool"
	"github.com/flitshare/flit/pkg/blob"
)

// ImportFile ingests the contents of path and returns a temp tag protecting
// the new blob plus the ingested byte count. The file is hashed first; with
// ImportTryReference the store then hard-links the original in place of a
// copy when the filesystem allows it.
func (s *Store) ImportFile(path string, mode ImportMode) (*TempTag, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	h, size, err := blob.HashReader(f)
	f.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("hash %s: %w", path, err)
	}

	dest := s.blobPath(h)
	if !s.Has(h) {
		linked := false
		if mode == ImportTryReference {
			if err := os.Link(path, dest); err == nil {
				linked = true
			}
		}
		if !linked {
			if err := s.copyIn(path, dest); err != nil {
				return nil, 0, err
			}
		}
	}
	if err := s.recordSize(h, size); err != nil {
		return nil, 0, err
	}
	tag, err := s.newTag(h)
	if err != nil {
		return nil, 0, err
	}
	return tag, size, nil
}

// ImportVerified streams exactly size bytes from r into the store and
// verifies them against expected. Nothing becomes addressable unless the
// hash matches; a mismatch leaves no trace behind.
func (s *Store) ImportVerified(r io.Reader, expected blob.Hash, size int64) error {
	if s.Has(expected) {
		// Already present; drain the stream so framing stays aligned.
		_, err := io.CopyN(io.Discard, r, size)
		return err
	}
	tmp, err := s.tempFile()
	if err != nil {
		return err
	}
	keep := false
	defer func() {
		tmp.Close()
		if !keep {
			os.Remove(tmp.Name())
		}
	}()

	buf := bufpool.Get()
	defer bufpool.Put(buf)
	hasher := sha256.New()
	n, err := io.CopyBuffer(io.MultiWriter(tmp, hasher), io.LimitReader(r, size), buf)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("short read: got %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
	}
	var h blob.Hash
	hasher.Sum(h[:0])
	if h != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, h, expected)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.blobPath(expected)); err != nil {
		return err
	}
	keep = true
	return s.recordSize(expected, size)
}

// PutBlob stores data and returns a temp tag protecting it.
func (s *Store) PutBlob(data []byte) (*TempTag, error) {
	h := blob.HashOf(data)
	if !s.Has(h) {
		tmp, err := s.tempFile()
		if err != nil {
			return nil, err
		}
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return nil, err
		}
		if err := os.Rename(tmp.Name(), s.blobPath(h)); err != nil {
			os.Remove(tmp.Name())
			return nil, err
		}
	}
	if err := s.recordSize(h, int64(len(data))); err != nil {
		return nil, err
	}
	return s.newTag(h)
}

// copyIn copies src into the store via a temp file and rename.
func (s *Store) copyIn(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := s.tempFile()
	if err != nil {
		return err
	}
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	if _, err := io.CopyBuffer(tmp, in, buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *Store) tempFile() (*os.File, error) {
	return os.CreateTemp(filepath.Join(s.dir, "blobs"), ".tmp-"+uuid.NewString())
}
