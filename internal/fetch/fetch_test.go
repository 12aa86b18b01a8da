package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flitshare/flit/internal/assemble"
	"github.com/flitshare/flit/internal/materialize"
	"github.com/flitshare/flit/internal/progress"
	"github.com/flitshare/flit/internal/provide"
	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/internal/wire"
	"github.com/flitshare/flit/pkg/blob"
	"github.com/flitshare/flit/pkg/ticket"
)

type duplex struct {
	io.Reader
	io.Writer
}

// pipePair builds an in-memory bidirectional stream so the provider and
// getter halves can be exercised without a network.
func pipePair() (client, server io.ReadWriter) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	return duplex{cr, cw}, duplex{sr, sw}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "tree")
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestPullCollectionRoundTrip(t *testing.T) {
	files := map[string]string{
		"a.txt":     "hello",
		"sub/b.bin": "world of bytes",
		"sub/c":     "",
	}
	provider := openStore(t)
	res, err := assemble.Build(context.Background(), provider, writeTree(t, files))
	if err != nil {
		t.Fatalf("assemble.Build() error = %v", err)
	}
	defer res.Tag.Drop()

	client, server := pipePair()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- provide.ServeStream(provider, server, discardLogger())
	}()

	getter := openStore(t)
	tk := &ticket.Ticket{Hash: res.Tag.Hash(), Format: blob.FormatCollection}
	var events []progress.Event
	var status strings.Builder
	total, err := Pull(context.Background(), getter, client, tk, &status, func(ev progress.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("ServeStream() error = %v", err)
	}
	if total != res.Size {
		t.Errorf("Pull() total = %d, want %d", total, res.Size)
	}
	if !strings.Contains(status.String(), "getting 3 blob(s)") {
		t.Errorf("status line = %q, want item count announcement", status.String())
	}

	out := filepath.Join(t.TempDir(), "out")
	if err := materialize.LoadAndRun(getter, tk.Hash, out); err != nil {
		t.Fatalf("materialize error = %v", err)
	}
	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(out, "tree", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != content {
			t.Errorf("%s = %q, want %q", name, got, content)
		}
	}

	// The event stream must reduce to a clean finished transfer.
	r := progress.NewReducer()
	for _, ev := range events {
		r.Apply(ev)
	}
	st := r.Apply(progress.TransferDone(total, 1))
	if st.Phase != progress.PhaseFinished {
		t.Errorf("final phase = %v, want %v", st.Phase, progress.PhaseFinished)
	}
	if st.Violations != 0 {
		t.Errorf("Violations = %d, want 0", st.Violations)
	}
	if st.OverallLen != uint64(len(files)) {
		t.Errorf("OverallLen = %d, want %d", st.OverallLen, len(files))
	}
}

func TestPullRaw(t *testing.T) {
	provider := openStore(t)
	data := []byte("just one blob")
	tag, err := provider.PutBlob(data)
	if err != nil {
		t.Fatalf("PutBlob() error = %v", err)
	}
	defer tag.Drop()

	client, server := pipePair()
	go provide.ServeStream(provider, server, discardLogger())

	getter := openStore(t)
	tk := &ticket.Ticket{Hash: tag.Hash(), Format: blob.FormatRaw}
	total, err := Pull(context.Background(), getter, client, tk, io.Discard, func(progress.Event) {})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if total != int64(len(data)) {
		t.Errorf("Pull() total = %d, want %d", total, len(data))
	}
	got, err := getter.GetBlob(tag.Hash())
	if err != nil {
		t.Fatalf("GetBlob() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("blob = %q, want %q", got, data)
	}
}

func TestPullUnknownRoot(t *testing.T) {
	provider := openStore(t)
	client, server := pipePair()
	go provide.ServeStream(provider, server, discardLogger())

	getter := openStore(t)
	tk := &ticket.Ticket{Hash: blob.HashOf([]byte("nobody has this")), Format: blob.FormatCollection}
	if _, err := Pull(context.Background(), getter, client, tk, io.Discard, func(progress.Event) {}); !errors.Is(err, wire.ErrNotProvided) {
		t.Errorf("Pull() error = %v, want %v", err, wire.ErrNotProvided)
	}
}

func TestPullRejectsCorruptPayload(t *testing.T) {
	data := []byte("the real payload")
	h := blob.HashOf(data)

	client, server := pipePair()
	go func() {
		if _, err := wire.ReadRequest(server); err != nil {
			return
		}
		a := wire.Announce{Format: blob.FormatRaw, Sizes: []int64{int64(len(data))}}
		if err := wire.WriteAnnounce(server, a); err != nil {
			return
		}
		server.Write([]byte("not the payload!"))
	}()

	getter := openStore(t)
	tk := &ticket.Ticket{Hash: h, Format: blob.FormatRaw}
	if _, err := Pull(context.Background(), getter, client, tk, io.Discard, func(progress.Event) {}); !errors.Is(err, store.ErrHashMismatch) {
		t.Fatalf("Pull() error = %v, want %v", err, store.ErrHashMismatch)
	}
	if getter.Has(h) {
		t.Error("corrupt payload became addressable")
	}
}

func TestPullEventSequence(t *testing.T) {
	files := map[string]string{"x": "xx", "y": "yyyy"}
	provider := openStore(t)
	res, err := assemble.Build(context.Background(), provider, writeTree(t, files))
	if err != nil {
		t.Fatalf("assemble.Build() error = %v", err)
	}
	defer res.Tag.Drop()

	client, server := pipePair()
	go provide.ServeStream(provider, server, discardLogger())

	var kinds []progress.EventKind
	getter := openStore(t)
	tk := &ticket.Ticket{Hash: res.Tag.Hash(), Format: blob.FormatCollection}
	if _, err := Pull(context.Background(), getter, client, tk, io.Discard, func(ev progress.Event) {
		if ev.Kind == progress.KindItemProgress {
			return
		}
		kinds = append(kinds, ev.Kind)
	}); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	want := []progress.EventKind{
		progress.KindConnected,
		progress.KindCollectionDiscovered,
		progress.KindItemStarted, progress.KindItemDone,
		progress.KindItemStarted, progress.KindItemDone,
	}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}
