// Package wire frames the request/response exchange for fetching a root.
// One bidirectional stream carries the whole transfer: the getter writes a
// request naming the root, the provider answers with an announce section
// (the serialized collection, if any, plus per-member sizes) followed by
// the member payloads in collection order. Payload integrity is verified
// by the receiving store against each member's hash, not here.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/flitshare/flit/pkg/blob"
)

const (
	magic = "FLT1"

	// maxCollectionSize bounds the serialized collection blob a getter
	// will accept from an untrusted provider.
	maxCollectionSize = 32 * 1024 * 1024
	// maxItems bounds the member count a getter will accept.
	maxItems = 1 << 20
)

const (
	statusOK       = 0
	statusNotFound = 1
)

var (
	// ErrInvalidMagic indicates a stream that does not speak this protocol.
	ErrInvalidMagic = errors.New("invalid magic bytes")
	// ErrNotProvided indicates the provider does not have the requested root.
	ErrNotProvided = errors.New("root not provided by peer")
	// ErrFrameTooLarge indicates an announce section exceeding the
	// receiver's limits.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrBadFrame indicates a malformed frame.
	ErrBadFrame = errors.New("malformed frame")
)

// Request names the root a getter wants.
type Request struct {
	Hash   blob.Hash
	Format blob.Format
}

// Announce is the provider's preamble: everything a getter needs to report
// "N files, M bytes" before any payload arrives. Collection is nil for a
// raw root.
type Announce struct {
	Format     blob.Format
	Collection []byte
	Sizes      []int64
}

// TotalBytes sums the announced member sizes.
func (a Announce) TotalBytes() int64 {
	var total int64
	for _, s := range a.Sizes {
		total += s
	}
	return total
}

// WriteRequest writes the getter's opening frame.
func WriteRequest(w io.Writer, req Request) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := w.Write(req.Hash[:]); err != nil {
		return fmt.Errorf("write root hash: %w", err)
	}
	if _, err := w.Write([]byte{byte(req.Format)}); err != nil {
		return fmt.Errorf("write format: %w", err)
	}
	return nil
}

// ReadRequest reads the getter's opening frame.
func ReadRequest(r io.Reader) (Request, error) {
	if err := expectMagic(r); err != nil {
		return Request{}, err
	}
	var req Request
	if _, err := io.ReadFull(r, req.Hash[:]); err != nil {
		return Request{}, fmt.Errorf("read root hash: %w", err)
	}
	var f [1]byte
	if _, err := io.ReadFull(r, f[:]); err != nil {
		return Request{}, fmt.Errorf("read format: %w", err)
	}
	req.Format = blob.Format(f[0])
	return req, nil
}

// WriteNotFound answers a request for an unknown root.
func WriteNotFound(w io.Writer) error {
	return writeHeader(w, statusNotFound)
}

// WriteAnnounce answers a request positively.
func WriteAnnounce(w io.Writer, a Announce) error {
	if len(a.Collection) > maxCollectionSize {
		return fmt.Errorf("%w: collection is %d bytes", ErrFrameTooLarge, len(a.Collection))
	}
	if len(a.Sizes) > maxItems {
		return fmt.Errorf("%w: %d items", ErrFrameTooLarge, len(a.Sizes))
	}
	if err := writeHeader(w, statusOK); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(a.Format)}); err != nil {
		return fmt.Errorf("write format: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(a.Collection))); err != nil {
		return fmt.Errorf("write collection length: %w", err)
	}
	if _, err := w.Write(a.Collection); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(a.Sizes))); err != nil {
		return fmt.Errorf("write item count: %w", err)
	}
	for _, size := range a.Sizes {
		if err := binary.Write(w, binary.BigEndian, uint64(size)); err != nil {
			return fmt.Errorf("write item size: %w", err)
		}
	}
	return nil
}

// ReadAnnounce reads the provider's answer frame.
func ReadAnnounce(r io.Reader) (Announce, error) {
	if err := expectMagic(r); err != nil {
		return Announce{}, err
	}
	var status [1]byte
	if _, err := io.ReadFull(r, status[:]); err != nil {
		return Announce{}, fmt.Errorf("read status: %w", err)
	}
	switch status[0] {
	case statusOK:
	case statusNotFound:
		return Announce{}, ErrNotProvided
	default:
		return Announce{}, fmt.Errorf("%w: status %d", ErrBadFrame, status[0])
	}

	var a Announce
	var f [1]byte
	if _, err := io.ReadFull(r, f[:]); err != nil {
		return Announce{}, fmt.Errorf("read format: %w", err)
	}
	a.Format = blob.Format(f[0])

	var colLen uint64
	if err := binary.Read(r, binary.BigEndian, &colLen); err != nil {
		return Announce{}, fmt.Errorf("read collection length: %w", err)
	}
	if colLen > maxCollectionSize {
		return Announce{}, fmt.Errorf("%w: collection is %d bytes", ErrFrameTooLarge, colLen)
	}
	if colLen > 0 {
		a.Collection = make([]byte, colLen)
		if _, err := io.ReadFull(r, a.Collection); err != nil {
			return Announce{}, fmt.Errorf("read collection: %w", err)
		}
	}

	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Announce{}, fmt.Errorf("read item count: %w", err)
	}
	if count > maxItems {
		return Announce{}, fmt.Errorf("%w: %d items", ErrFrameTooLarge, count)
	}
	a.Sizes = make([]int64, count)
	for i := range a.Sizes {
		var size uint64
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return Announce{}, fmt.Errorf("read item size: %w", err)
		}
		a.Sizes[i] = int64(size)
	}
	return a, nil
}

func writeHeader(w io.Writer, status byte) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := w.Write([]byte{status}); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

func expectMagic(r io.Reader) error {
	var m [len(magic)]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(m[:]) != magic {
		return ErrInvalidMagic
	}
	return nil
}
