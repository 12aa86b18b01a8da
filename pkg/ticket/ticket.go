// Package ticket implements the opaque rendezvous value a provider prints
// and a getter parses. A ticket carries everything needed to fetch one root:
// the provider's dialable addresses, the root hash, and its format tag.
package ticket

import (
	"encoding/base32"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/flitshare/flit/pkg/blob"
)

// prefix marks the string form so a mangled paste fails fast.
const prefix = "flit"

// ErrInvalidTicket indicates a ticket string that failed to parse.
var ErrInvalidTicket = errors.New("invalid ticket")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Ticket is an immutable rendezvous value. Construct with New or Parse.
type Ticket struct {
	Addrs  []string    `cbor:"1,keyasint"`
	Hash   blob.Hash   `cbor:"2,keyasint"`
	Format blob.Format `cbor:"3,keyasint"`
}

// New builds a ticket after validating the addresses.
func New(addrs []string, h blob.Hash, f blob.Format) (*Ticket, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no addresses", ErrInvalidTicket)
	}
	for _, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("%w: address %q: %v", ErrInvalidTicket, addr, err)
		}
	}
	if h.IsZero() {
		return nil, fmt.Errorf("%w: zero hash", ErrInvalidTicket)
	}
	return &Ticket{Addrs: addrs, Hash: h, Format: f}, nil
}

// Parse decodes the string form produced by String.
func Parse(s string) (*Ticket, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidTicket, prefix)
	}
	raw, err := encoding.DecodeString(strings.ToUpper(s[len(prefix):]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	var t Ticket
	if err := cbor.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if len(t.Addrs) == 0 || t.Hash.IsZero() {
		return nil, fmt.Errorf("%w: incomplete ticket", ErrInvalidTicket)
	}
	return &t, nil
}

// String renders the ticket as a single pasteable token.
func (t *Ticket) String() string {
	raw, err := encMode.Marshal(t)
	if err != nil {
		// The ticket type contains nothing that can fail to encode.
		panic(err)
	}
	return prefix + strings.ToLower(encoding.EncodeToString(raw))
}
