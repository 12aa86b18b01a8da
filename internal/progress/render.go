package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Renderer prints transfer state as plain log lines. It is the non-TTY
// fallback: one line per phase transition plus throttled byte progress.
type Renderer struct {
	mu        sync.Mutex
	w         io.Writer
	lastPhase Phase
	lastLine  time.Time
	seenPhase bool
	now       func() time.Time
}

// NewRenderer returns a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, now: time.Now}
}

// newRendererWithNow is the test constructor with an injected clock.
func newRendererWithNow(w io.Writer, now func() time.Time) *Renderer {
	return &Renderer{w: w, now: now}
}

// Observe prints st if it is worth a line: every phase change immediately,
// byte progress at most once per second.
func (r *Renderer) Observe(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	phaseChanged := !r.seenPhase || st.Phase != r.lastPhase
	overallChanged := st.Phase == PhaseReceivingCollection && phaseChanged
	if !phaseChanged && now.Sub(r.lastLine) < time.Second {
		return
	}
	r.seenPhase = true
	r.lastPhase = st.Phase
	r.lastLine = now

	switch st.Phase {
	case PhaseConnecting, PhaseRequesting:
		if phaseChanged {
			fmt.Fprintf(r.w, "%s ...\n", st.Phase)
		}
	case PhaseReceivingCollection:
		if overallChanged {
			fmt.Fprintf(r.w, "receiving %d blob(s)\n", st.OverallLen)
		}
		r.printItem(st, fmt.Sprintf("blob %d/%d", st.OverallPos+1, st.OverallLen))
	case PhaseReceivingSingleItem:
		r.printItem(st, "blob")
	case PhaseFinished:
		// The terminal summary is printed by Summary.
	case PhaseAborted:
		fmt.Fprintf(r.w, "aborted: %s\n", st.AbortCause)
	}
}

func (r *Renderer) printItem(st State, label string) {
	if !st.ItemActive {
		return
	}
	if st.ItemLen > 0 {
		fmt.Fprintf(r.w, "%s %s/%s\n", label,
			humanize.Bytes(uint64(st.ItemPos)), humanize.Bytes(uint64(st.ItemLen)))
		return
	}
	fmt.Fprintf(r.w, "%s %s\n", label, humanize.Bytes(uint64(st.ItemPos)))
}

// Summary prints the terminal one-line result for a finished transfer.
func Summary(w io.Writer, st State) {
	fmt.Fprintf(w, "Transferred %s in %s, %s/s\n",
		humanize.Bytes(uint64(st.TotalBytes)),
		st.Elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(st.Throughput())))
}
