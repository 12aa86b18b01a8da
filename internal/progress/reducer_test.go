package progress

import (
	"errors"
	"testing"
	"time"
)

func TestSingleBlobScenario(t *testing.T) {
	r := NewReducer()

	if got := r.State().Phase; got != PhaseConnecting {
		t.Fatalf("initial phase = %v, want connecting", got)
	}

	events := []Event{
		Connected(),
		ItemStarted(0, 1000),
		ItemProgress(0, 500),
		ItemProgress(0, 1000),
		ItemDone(0),
		TransferDone(1000, time.Second),
	}
	wantPhases := []Phase{
		PhaseRequesting,
		PhaseReceivingSingleItem,
		PhaseReceivingSingleItem,
		PhaseReceivingSingleItem,
		PhaseReceivingSingleItem,
		PhaseFinished,
	}
	for i, ev := range events {
		st := r.Apply(ev)
		if st.Phase != wantPhases[i] {
			t.Errorf("event %d (%v): phase = %v, want %v", i, ev.Kind, st.Phase, wantPhases[i])
		}
	}

	final := r.State()
	if final.Violations != 0 {
		t.Errorf("Violations = %d, want 0", final.Violations)
	}
	if got := final.Throughput(); got != 1000 {
		t.Errorf("Throughput() = %v, want 1000", got)
	}
}

func TestCollectionScenario(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())

	events := []Event{
		CollectionDiscovered(3),
		ItemStarted(0, 10),
		ItemDone(0),
		ItemStarted(1, 20),
		ItemDone(1),
		ItemStarted(2, 30),
		ItemDone(2),
		TransferDone(60, time.Second),
	}
	wantOverall := []uint64{0, 0, 0, 1, 1, 2, 2, 3}
	for i, ev := range events {
		st := r.Apply(ev)
		if st.Phase == PhaseReceivingSingleItem {
			t.Errorf("event %d: single-item phase during collection transfer", i)
		}
		if st.OverallPos != wantOverall[i] {
			t.Errorf("event %d (%v): OverallPos = %d, want %d", i, ev.Kind, st.OverallPos, wantOverall[i])
		}
	}

	final := r.State()
	if final.Phase != PhaseFinished {
		t.Errorf("final phase = %v, want finished", final.Phase)
	}
	if final.OverallLen != 3 {
		t.Errorf("OverallLen = %d, want 3", final.OverallLen)
	}
}

func TestItemCountersResetPerItem(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	r.Apply(CollectionDiscovered(2))

	st := r.Apply(ItemStarted(0, 100))
	if st.ItemPos != 0 || st.ItemLen != 100 || !st.ItemActive {
		t.Errorf("after ItemStarted: pos=%d len=%d active=%v", st.ItemPos, st.ItemLen, st.ItemActive)
	}
	st = r.Apply(ItemProgress(0, 60))
	if st.ItemPos != 60 {
		t.Errorf("ItemPos = %d, want 60", st.ItemPos)
	}
	st = r.Apply(ItemDone(0))
	if st.ItemActive {
		t.Error("ItemActive still true after ItemDone")
	}
	st = r.Apply(ItemStarted(1, 7))
	if st.ItemPos != 0 || st.ItemLen != 7 || !st.ItemActive {
		t.Errorf("counters not reset for next item: pos=%d len=%d active=%v", st.ItemPos, st.ItemLen, st.ItemActive)
	}
}

func TestAbortIsTerminal(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	r.Apply(CollectionDiscovered(2))
	r.Apply(ItemStarted(0, 10))

	st := r.Apply(Aborted("connection reset"))
	if st.Phase != PhaseAborted {
		t.Fatalf("phase = %v, want aborted", st.Phase)
	}
	if st.AbortCause != "connection reset" {
		t.Errorf("AbortCause = %q", st.AbortCause)
	}

	// Nothing after a terminal phase may change state.
	st = r.Apply(ItemProgress(0, 5))
	if st.Phase != PhaseAborted || st.ItemPos != 0 {
		t.Errorf("post-terminal event changed state: %+v", st)
	}
	if st.Violations != 1 {
		t.Errorf("Violations = %d, want 1", st.Violations)
	}
}

func TestPostFinishEventsFlagged(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	r.Apply(ItemStarted(0, 5))
	r.Apply(ItemDone(0))
	r.Apply(TransferDone(5, time.Millisecond))

	st := r.Apply(ItemStarted(1, 5))
	if st.Phase != PhaseFinished {
		t.Errorf("phase = %v, want finished", st.Phase)
	}
	if st.Violations != 1 {
		t.Errorf("Violations = %d, want 1", st.Violations)
	}
}

func TestIndexMismatchFlaggedNotFatal(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	r.Apply(CollectionDiscovered(2))
	r.Apply(ItemStarted(0, 10))

	st := r.Apply(ItemProgress(1, 4))
	if st.Violations != 1 {
		t.Errorf("Violations = %d, want 1", st.Violations)
	}
	if st.ItemPos != 4 {
		t.Errorf("ItemPos = %d, want 4 (progress still applied)", st.ItemPos)
	}
	if st.Phase != PhaseReceivingCollection {
		t.Errorf("phase = %v, want receiving collection", st.Phase)
	}
}

func TestThroughputGuardsZeroElapsed(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	r.Apply(ItemStarted(0, 10))
	st := r.Apply(TransferDone(10, 0))
	if got := st.Throughput(); got != 10 {
		t.Errorf("Throughput() with zero elapsed = %v, want 10", got)
	}
}

func TestUnknownEventKindSkipped(t *testing.T) {
	r := NewReducer()
	r.Apply(Connected())
	st := r.Apply(Event{Kind: EventKind(99)})
	if st.Phase != PhaseRequesting {
		t.Errorf("unknown event changed phase to %v", st.Phase)
	}
}

func TestConsume(t *testing.T) {
	events := make(chan Event, 8)
	events <- Connected()
	events <- ItemStarted(0, 3)
	events <- ItemDone(0)
	events <- TransferDone(3, time.Second)
	close(events)

	var phases []Phase
	final, err := Consume(events, func(st State) {
		phases = append(phases, st.Phase)
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if final.Phase != PhaseFinished {
		t.Errorf("final phase = %v, want finished", final.Phase)
	}
	if len(phases) != 4 {
		t.Errorf("observed %d snapshots, want 4", len(phases))
	}
}

func TestConsumeAborted(t *testing.T) {
	events := make(chan Event, 4)
	events <- Connected()
	events <- Aborted("peer vanished")
	close(events)

	_, err := Consume(events, nil)
	if !errors.Is(err, ErrTransferAborted) {
		t.Fatalf("Consume() error = %v, want ErrTransferAborted", err)
	}
}
