package provide

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/flitshare/flit/internal/bufpool"
	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/internal/wire"
	"github.com/flitshare/flit/pkg/blob"
)

// ServeStream answers one blob request on rw: read the requested root,
// announce the member layout, then stream every payload in collection
// order. A root that is not in the store is answered with a not-found
// frame rather than an error.
func ServeStream(st *store.Store, rw io.ReadWriter, logger *slog.Logger) error {
	req, err := wire.ReadRequest(rw)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	logger.Info("request", "hash", req.Hash, "format", req.Format)

	switch req.Format {
	case blob.FormatCollection:
		return serveCollection(st, rw, req.Hash, logger)
	case blob.FormatRaw:
		return serveRaw(st, rw, req.Hash)
	default:
		return wire.WriteNotFound(rw)
	}
}

func serveCollection(st *store.Store, rw io.ReadWriter, root blob.Hash, logger *slog.Logger) error {
	raw, err := st.GetBlob(root)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return wire.WriteNotFound(rw)
		}
		return err
	}
	c, err := st.LoadCollection(root)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return wire.WriteNotFound(rw)
		}
		return err
	}

	sizes := make([]int64, 0, c.Len())
	for _, entry := range c.Entries() {
		size, err := st.SizeOf(entry.Hash)
		if err != nil {
			return fmt.Errorf("size of %s: %w", entry.Hash, err)
		}
		sizes = append(sizes, size)
	}
	announce := wire.Announce{Format: blob.FormatCollection, Collection: raw, Sizes: sizes}
	if err := wire.WriteAnnounce(rw, announce); err != nil {
		return fmt.Errorf("write announce: %w", err)
	}

	for i, entry := range c.Entries() {
		if err := streamBlob(st, rw, entry.Hash); err != nil {
			return fmt.Errorf("stream member %d (%s): %w", i, entry.Name, err)
		}
	}
	logger.Info("served collection", "hash", root, "items", c.Len())
	return nil
}

func serveRaw(st *store.Store, rw io.ReadWriter, root blob.Hash) error {
	size, err := st.SizeOf(root)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return wire.WriteNotFound(rw)
		}
		return err
	}
	announce := wire.Announce{Format: blob.FormatRaw, Sizes: []int64{size}}
	if err := wire.WriteAnnounce(rw, announce); err != nil {
		return fmt.Errorf("write announce: %w", err)
	}
	return streamBlob(st, rw, root)
}

func streamBlob(st *store.Store, w io.Writer, h blob.Hash) error {
	r, _, err := st.BlobReader(h)
	if err != nil {
		return err
	}
	defer r.Close()
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	_, err = io.CopyBuffer(w, r, buf)
	return err
}
