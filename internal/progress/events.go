// Package progress interprets the ordered event stream describing a
// transfer and reduces it into display state. The reducer is a pure state
// machine with no I/O; renderers consume its snapshots.
package progress

import (
	"fmt"
	"time"
)

// EventKind tags a transfer event variant.
type EventKind int

const (
	// KindConnected: the session to the provider is established.
	KindConnected EventKind = iota
	// KindCollectionDiscovered: the root turned out to be a collection
	// with ItemCount members.
	KindCollectionDiscovered
	// KindItemStarted: transfer of one item began.
	KindItemStarted
	// KindItemProgress: bytes received so far for the current item.
	KindItemProgress
	// KindItemDone: the current item completed.
	KindItemDone
	// KindTransferDone: the whole transfer completed.
	KindTransferDone
	// KindAborted: the transfer failed; Cause carries the reason.
	KindAborted
)

func (k EventKind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindCollectionDiscovered:
		return "collection_discovered"
	case KindItemStarted:
		return "item_started"
	case KindItemProgress:
		return "item_progress"
	case KindItemDone:
		return "item_done"
	case KindTransferDone:
		return "transfer_done"
	case KindAborted:
		return "aborted"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one moment in a transfer. It is a closed tagged union: Kind
// selects the variant and the relevant fields; unknown kinds are tolerated
// by the reducer for forward compatibility.
type Event struct {
	Kind EventKind

	// ItemCount is set for CollectionDiscovered.
	ItemCount uint64
	// Index is set for ItemStarted, ItemProgress and ItemDone.
	Index uint64
	// Size is the declared item size for ItemStarted.
	Size int64
	// Offset is the bytes-so-far for ItemProgress.
	Offset int64
	// TotalBytes and Elapsed are set for TransferDone.
	TotalBytes int64
	Elapsed    time.Duration
	// Cause is set for Aborted.
	Cause string
}

// Connected builds a Connected event.
func Connected() Event {
	return Event{Kind: KindConnected}
}

// CollectionDiscovered builds a CollectionDiscovered event.
func CollectionDiscovered(itemCount uint64) Event {
	return Event{Kind: KindCollectionDiscovered, ItemCount: itemCount}
}

// ItemStarted builds an ItemStarted event.
func ItemStarted(index uint64, declaredSize int64) Event {
	return Event{Kind: KindItemStarted, Index: index, Size: declaredSize}
}

// ItemProgress builds an ItemProgress event.
func ItemProgress(index uint64, bytesSoFar int64) Event {
	return Event{Kind: KindItemProgress, Index: index, Offset: bytesSoFar}
}

// ItemDone builds an ItemDone event.
func ItemDone(index uint64) Event {
	return Event{Kind: KindItemDone, Index: index}
}

// TransferDone builds a TransferDone event.
func TransferDone(totalBytes int64, elapsed time.Duration) Event {
	return Event{Kind: KindTransferDone, TotalBytes: totalBytes, Elapsed: elapsed}
}

// Aborted builds an Aborted event.
func Aborted(cause string) Event {
	return Event{Kind: KindAborted, Cause: cause}
}
