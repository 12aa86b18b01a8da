package progress

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransferAborted is the operation-level failure produced when the event
// stream carries an Aborted event.
var ErrTransferAborted = errors.New("transfer aborted")

// Phase is the user-visible stage of a transfer, derived purely from the
// event sequence seen so far.
type Phase int

const (
	// PhaseConnecting: no event seen yet.
	PhaseConnecting Phase = iota
	// PhaseRequesting: connected, waiting to learn whether the root is a
	// single blob or a collection.
	PhaseRequesting
	// PhaseReceivingCollection: receiving member OverallPos of OverallLen.
	PhaseReceivingCollection
	// PhaseReceivingSingleItem: receiving one opaque blob; no
	// CollectionDiscovered was seen before the first item.
	PhaseReceivingSingleItem
	// PhaseFinished: terminal success.
	PhaseFinished
	// PhaseAborted: terminal failure.
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseRequesting:
		return "requesting"
	case PhaseReceivingCollection:
		return "receiving collection"
	case PhaseReceivingSingleItem:
		return "receiving"
	case PhaseFinished:
		return "finished"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether the phase accepts no further events.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseAborted
}

// State is a snapshot of the two cooperating indicators: the overall
// counter (item OverallPos of OverallLen) and the current-item counter
// (ItemPos of ItemLen bytes).
type State struct {
	Phase Phase

	// OverallPos/OverallLen drive the "blob N of M" indicator. OverallLen
	// is zero until a CollectionDiscovered event arrives.
	OverallPos uint64
	OverallLen uint64

	// ItemPos/ItemLen drive the current-item byte indicator. ItemActive
	// is false between ItemDone and the next ItemStarted.
	ItemPos    int64
	ItemLen    int64
	ItemActive bool

	// TotalBytes and Elapsed are filled by TransferDone.
	TotalBytes int64
	Elapsed    time.Duration

	// AbortCause is filled by Aborted.
	AbortCause string

	// Violations counts events that arrived out of contract (after a
	// terminal phase, or with a mismatched item index). They indicate a
	// bug in the event producer and never stop the reducer.
	Violations int
}

// Throughput returns the average transfer rate in bytes per second. For
// effectively instantaneous transfers the byte count itself is returned
// rather than dividing by zero.
func (s State) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return float64(s.TotalBytes)
	}
	return float64(s.TotalBytes) / secs
}

// Reducer folds transfer events into State. Events must be applied in
// arrival order, one at a time; the reducer never reorders or batches.
// The zero value is not usable; construct with NewReducer.
type Reducer struct {
	state State
	// seq records whether a CollectionDiscovered was seen, which
	// disambiguates a multi-item collection from a single opaque blob.
	seq bool
	// current is the index from the most recent ItemStarted.
	current uint64
}

// NewReducer returns a reducer in the Connecting phase.
func NewReducer() *Reducer {
	return &Reducer{state: State{Phase: PhaseConnecting}}
}

// State returns the current snapshot.
func (r *Reducer) State() State {
	return r.state
}

// Apply folds one event and returns the resulting snapshot. Events after a
// terminal phase are counted as violations and otherwise ignored; unknown
// event kinds are skipped.
func (r *Reducer) Apply(ev Event) State {
	if r.state.Phase.Terminal() {
		r.state.Violations++
		return r.state
	}
	switch ev.Kind {
	case KindConnected:
		r.state.Phase = PhaseRequesting

	case KindCollectionDiscovered:
		r.seq = true
		r.state.Phase = PhaseReceivingCollection
		r.state.OverallLen = ev.ItemCount
		r.state.OverallPos = 0

	case KindItemStarted:
		if r.seq {
			r.state.Phase = PhaseReceivingCollection
			r.state.OverallPos = ev.Index
		} else {
			// No enumeration seen: this is the sole item of a
			// single-blob transfer.
			r.state.Phase = PhaseReceivingSingleItem
		}
		r.current = ev.Index
		r.state.ItemPos = 0
		r.state.ItemLen = ev.Size
		r.state.ItemActive = true

	case KindItemProgress:
		if ev.Index != r.current {
			r.state.Violations++
		}
		r.state.ItemPos = ev.Offset

	case KindItemDone:
		if ev.Index != r.current {
			r.state.Violations++
		}
		r.state.ItemActive = false

	case KindTransferDone:
		r.state.Phase = PhaseFinished
		r.state.ItemActive = false
		r.state.TotalBytes = ev.TotalBytes
		r.state.Elapsed = ev.Elapsed
		if r.seq {
			r.state.OverallPos = r.state.OverallLen
		}

	case KindAborted:
		r.state.Phase = PhaseAborted
		r.state.ItemActive = false
		r.state.AbortCause = ev.Cause

	default:
		// Unknown variant from a newer producer; skip it.
	}
	return r.state
}

// Consume drains events, applying each in order and invoking onState with
// every resulting snapshot. It returns the final state, plus
// ErrTransferAborted when the stream carried an abort. onState may be nil.
func Consume(events <-chan Event, onState func(State)) (State, error) {
	r := NewReducer()
	for ev := range events {
		st := r.Apply(ev)
		if onState != nil {
			onState(st)
		}
	}
	final := r.State()
	if final.Phase == PhaseAborted {
		return final, fmt.Errorf("%w: %s", ErrTransferAborted, final.AbortCause)
	}
	return final, nil
}
