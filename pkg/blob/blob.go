// Package blob defines the content identity primitives shared by the store,
// the collection model and the ticket format.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// HashSize is the size of a content hash in bytes.
const HashSize = sha256.Size

// ErrInvalidHash indicates a malformed hash encoding.
var ErrInvalidHash = errors.New("invalid hash")

// Hash is the store-assigned identity of a blob's verified content.
type Hash [HashSize]byte

// HashOf returns the content hash of data.
func HashOf(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// HashReader consumes r and returns the content hash and byte count.
func HashReader(r io.Reader) (Hash, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Hash{}, 0, err
	}
	var out Hash
	h.Sum(out[:0])
	return out, n, nil
}

// FromHex parses a lowercase hex hash string.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != HashSize {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Hex returns the full lowercase hex form of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalBinary encodes the hash as its raw bytes. CBOR encoders pick this
// up, so hashes travel as byte strings rather than integer arrays.
func (h Hash) MarshalBinary() ([]byte, error) {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out, nil
}

// UnmarshalBinary decodes a raw-byte hash.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != HashSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidHash, len(data))
	}
	copy(h[:], data)
	return nil
}

// Format tags what a root hash points at.
type Format uint8

const (
	// FormatRaw identifies a single opaque blob.
	FormatRaw Format = 0
	// FormatCollection identifies a serialized collection whose entries
	// reference further blobs.
	FormatCollection Format = 1
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatCollection:
		return "collection"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}
