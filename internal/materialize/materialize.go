// Package materialize writes a fetched collection back out as files. Entry
// names come from a peer and are untrusted, so every name is re-validated
// against the destination root even though the sender validated it at
// assembly time.
package materialize

import (
	"errors"
	"fmt"

	"github.com/flitshare/flit/internal/store"
	"github.com/flitshare/flit/pkg/blob"
	"github.com/flitshare/flit/pkg/collection"
	"github.com/flitshare/flit/pkg/pathname"
)

// ErrExportFailed indicates that one or more entries failed to export.
var ErrExportFailed = errors.New("export failed")

// EntryError reports a single entry's export failure.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %q: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Run exports every entry of c under destRoot, in collection order. Entry
// failures are independent: a failed entry is recorded and the remaining
// entries are still exported, because later entries are separate files on
// disk. The returned error wraps ErrExportFailed and joins the per-entry
// failures; nil means every entry landed.
func Run(st *store.Store, c *collection.Collection, destRoot string) error {
	var failures []error
	for _, entry := range c.Entries() {
		if err := exportEntry(st, entry, destRoot); err != nil {
			failures = append(failures, &EntryError{Name: entry.Name, Err: err})
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%w: %d of %d entries: %w",
			ErrExportFailed, len(failures), c.Len(), errors.Join(failures...))
	}
	return nil
}

// LoadAndRun loads the collection for root and materializes it.
func LoadAndRun(st *store.Store, root blob.Hash, destRoot string) error {
	c, err := st.LoadCollection(root)
	if err != nil {
		return err
	}
	return Run(st, c, destRoot)
}

func exportEntry(st *store.Store, entry collection.Entry, destRoot string) error {
	dest, err := pathname.ExportPath(destRoot, entry.Name)
	if err != nil {
		return err
	}
	return st.Export(entry.Hash, dest, store.ExportTryReference)
}
