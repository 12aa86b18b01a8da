// Package fetch implements the receiving side: dial the ticket's provider,
// pull the root and its members into a local scratch store, then materialize
// the collection into the output directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/flitshare/flit/internal/materialize"
	"github.com/flitshare/flit/internal/progress"
	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/internal/transport"
	"github.com/flitshare/flit/internal/wire"
	"github.com/flitshare/flit/pkg/blob"
	"github.com/flitshare/flit/pkg/collection"
	"github.com/flitshare/flit/pkg/ticket"
)

// Options configures a get run.
type Options struct {
	// Ticket is the encoded ticket string from the provider.
	Ticket string
	// OutDir is where the received tree is materialized. Entry names carry
	// the shared directory's name, so OutDir is typically ".".
	OutDir string
	// StoreDir is the scratch store location, created for this run and
	// removed afterwards.
	StoreDir string

	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// Pull requests the ticket's root over rw and imports every member into st,
// emitting one event per observable step. The announced item count and byte
// total are printed to status before any payload arrives. Pull returns the
// payload byte count. The store verifies each member against its announced
// hash, so a lying provider fails the transfer instead of corrupting the
// output.
func Pull(ctx context.Context, st *store.Store, rw io.ReadWriter, tk *ticket.Ticket, status io.Writer, emit func(progress.Event)) (int64, error) {
	emit(progress.Connected())
	if err := wire.WriteRequest(rw, wire.Request{Hash: tk.Hash, Format: tk.Format}); err != nil {
		return 0, err
	}
	a, err := wire.ReadAnnounce(rw)
	if err != nil {
		return 0, err
	}
	if a.Format != tk.Format {
		return 0, fmt.Errorf("%w: announced format %d, requested %d", wire.ErrBadFrame, a.Format, tk.Format)
	}
	fmt.Fprintf(status, "getting %d blob(s), %s\n", len(a.Sizes), humanize.Bytes(uint64(a.TotalBytes())))

	switch tk.Format {
	case blob.FormatCollection:
		return pullCollection(ctx, st, rw, tk.Hash, a, emit)
	case blob.FormatRaw:
		return pullRaw(ctx, st, rw, tk.Hash, a, emit)
	default:
		return 0, fmt.Errorf("%w: format %d", wire.ErrBadFrame, tk.Format)
	}
}

func pullCollection(ctx context.Context, st *store.Store, r io.Reader, root blob.Hash, a wire.Announce, emit func(progress.Event)) (int64, error) {
	if got := blob.HashOf(a.Collection); got != root {
		return 0, fmt.Errorf("%w: collection hashes to %s, ticket names %s", store.ErrHashMismatch, got, root)
	}
	var c collection.Collection
	if err := c.UnmarshalBinary(a.Collection); err != nil {
		return 0, err
	}
	if c.Len() != len(a.Sizes) {
		return 0, fmt.Errorf("%w: %d entries, %d sizes", wire.ErrBadFrame, c.Len(), len(a.Sizes))
	}
	tag, err := st.PutBlob(a.Collection)
	if err != nil {
		return 0, err
	}
	defer tag.Drop()

	emit(progress.CollectionDiscovered(uint64(c.Len())))
	var total int64
	for i, entry := range c.Entries() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := pullItem(st, r, uint64(i), entry.Hash, a.Sizes[i], emit)
		total += n
		if err != nil {
			return total, fmt.Errorf("member %d (%s): %w", i, entry.Name, err)
		}
	}
	return total, nil
}

func pullRaw(ctx context.Context, st *store.Store, r io.Reader, root blob.Hash, a wire.Announce, emit func(progress.Event)) (int64, error) {
	if len(a.Sizes) != 1 {
		return 0, fmt.Errorf("%w: raw root announced %d sizes", wire.ErrBadFrame, len(a.Sizes))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return pullItem(st, r, 0, root, a.Sizes[0], emit)
}

func pullItem(st *store.Store, r io.Reader, index uint64, h blob.Hash, size int64, emit func(progress.Event)) (int64, error) {
	emit(progress.ItemStarted(index, size))
	cr := &countingReader{r: r, emit: func(off int64) {
		emit(progress.ItemProgress(index, off))
	}}
	if err := st.ImportVerified(cr, h, size); err != nil {
		return cr.off, err
	}
	emit(progress.ItemDone(index))
	return cr.off, nil
}

// countingReader reports the running offset after every read.
type countingReader struct {
	r    io.Reader
	off  int64
	emit func(off int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.off += int64(n)
		c.emit(c.off)
	}
	return n, err
}

// Run dials the ticket's provider, pulls the data with live progress, and
// materializes it under opts.OutDir.
func Run(ctx context.Context, opts Options) error {
	tk, err := ticket.Parse(opts.Ticket)
	if err != nil {
		return err
	}
	if opts.StoreDir == "" {
		opts.StoreDir = ".flit-get-" + tk.Hash.Hex()[:16]
	}
	if _, err := os.Stat(opts.StoreDir); err == nil {
		return fmt.Errorf("can not get twice into the same directory: %s exists", opts.StoreDir)
	}
	st, err := store.Open(opts.StoreDir)
	if err != nil {
		return err
	}
	defer func() {
		st.Close()
		os.RemoveAll(opts.StoreDir)
	}()

	sess, err := transport.Dial(ctx, tk.Addrs, opts.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	stream, err := sess.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	events := make(chan progress.Event, 64)
	final := make(chan progress.State, 1)
	observe, stopView := observer(opts.Stderr)
	go func() {
		end, _ := progress.Consume(events, observe)
		final <- end
	}()

	started := time.Now()
	total, pullErr := Pull(ctx, st, stream, tk, opts.Stdout, func(ev progress.Event) {
		events <- ev
	})
	if pullErr != nil {
		events <- progress.Aborted(pullErr.Error())
		close(events)
		<-final
		stopView()
		return pullErr
	}
	events <- progress.TransferDone(total, time.Since(started))
	close(events)
	finalState := <-final
	stopView()

	if err := materializeRoot(st, tk, opts.OutDir); err != nil {
		return err
	}
	progress.Summary(opts.Stdout, finalState)
	return nil
}

// materializeRoot exports the pulled data: a collection becomes a tree under
// outDir, a raw root a single file named after its hash.
func materializeRoot(st *store.Store, tk *ticket.Ticket, outDir string) error {
	switch tk.Format {
	case blob.FormatCollection:
		return materialize.LoadAndRun(st, tk.Hash, outDir)
	case blob.FormatRaw:
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		return st.Export(tk.Hash, exportName(outDir, tk.Hash), store.ExportTryReference)
	default:
		return fmt.Errorf("unknown format %d", tk.Format)
	}
}

func exportName(outDir string, h blob.Hash) string {
	return filepath.Join(outDir, h.Hex()[:16])
}

// atomicState shares the latest reducer snapshot with the live view's
// polling goroutine.
type atomicState struct {
	mu sync.Mutex
	st progress.State
}

func (a *atomicState) store(st progress.State) {
	a.mu.Lock()
	a.st = st
	a.mu.Unlock()
}

func (a *atomicState) load() progress.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st
}

// observer picks the progress surface: a live view on a terminal, plain log
// lines otherwise. The returned stop function tears the live view down.
func observer(stderr io.Writer) (func(progress.State), func()) {
	f, isFile := stderr.(*os.File)
	if isFile && progress.IsTTY(f) {
		var latest atomicState
		stop := progress.RunLiveView(latest.load)
		return latest.store, stop
	}
	r := progress.NewRenderer(stderr)
	return r.Observe, func() {}
}
