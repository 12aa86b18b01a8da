// Package collection models a packaged file or directory tree as a flat,
// ordered sequence of (name, hash) entries. Entry order is part of the
// collection's identity: the serialized form is deterministic, so two
// collections with the same entries in the same order are byte-identical
// and therefore hash-identical.
package collection

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/flitshare/flit/pkg/blob"
)

const formatVersion = 1

// ErrBadEncoding indicates a collection blob that failed to decode.
var ErrBadEncoding = errors.New("bad collection encoding")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Entry is a single named blob inside a collection.
type Entry struct {
	Name string    `cbor:"1,keyasint"`
	Hash blob.Hash `cbor:"2,keyasint"`
}

// Collection is an ordered sequence of entries. The zero value is an empty
// collection ready for use.
type Collection struct {
	entries []Entry
}

type wireCollection struct {
	Version uint8   `cbor:"1,keyasint"`
	Entries []Entry `cbor:"2,keyasint"`
}

// Push appends an entry. Order of Push calls is the enumeration order a
// receiver will observe.
func (c *Collection) Push(name string, h blob.Hash) {
	c.entries = append(c.entries, Entry{Name: name, Hash: h})
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

// Entries returns the entries in insertion order. The returned slice is
// shared; callers must not mutate it.
func (c *Collection) Entries() []Entry {
	return c.entries
}

// MarshalBinary serializes the collection deterministically.
func (c *Collection) MarshalBinary() ([]byte, error) {
	entries := c.entries
	if entries == nil {
		entries = []Entry{}
	}
	return encMode.Marshal(wireCollection{Version: formatVersion, Entries: entries})
}

// UnmarshalBinary decodes a serialized collection. Entry names are not
// validated here; materialization re-checks them against the destination
// root.
func (c *Collection) UnmarshalBinary(data []byte) error {
	var w wireCollection
	if err := decMode.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	if w.Version != formatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadEncoding, w.Version)
	}
	c.entries = w.Entries
	return nil
}
