package progress

import (
	"strings"
	"testing"
	"time"
)

func TestRendererThrottlesProgressLines(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	var out strings.Builder
	r := newRendererWithNow(&out, clock)

	red := NewReducer()
	r.Observe(red.Apply(Connected()))
	r.Observe(red.Apply(ItemStarted(0, 1000)))

	// Rapid progress updates within the same second collapse.
	for i := int64(1); i <= 5; i++ {
		r.Observe(red.Apply(ItemProgress(0, i*100)))
	}
	burst := strings.Count(out.String(), "blob")
	if burst != 1 {
		t.Errorf("progress lines in burst = %d, want 1", burst)
	}

	now = now.Add(2 * time.Second)
	r.Observe(red.Apply(ItemProgress(0, 900)))
	if got := strings.Count(out.String(), "blob"); got != 2 {
		t.Errorf("progress lines after throttle window = %d, want 2", got)
	}
}

func TestRendererPrintsAbort(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out)
	red := NewReducer()
	r.Observe(red.Apply(Connected()))
	r.Observe(red.Apply(Aborted("peer gone")))
	if !strings.Contains(out.String(), "aborted: peer gone") {
		t.Errorf("output missing abort line: %q", out.String())
	}
}

func TestSummary(t *testing.T) {
	var out strings.Builder
	st := State{Phase: PhaseFinished, TotalBytes: 1000, Elapsed: time.Second}
	Summary(&out, st)
	got := out.String()
	if !strings.Contains(got, "Transferred") || !strings.Contains(got, "/s") {
		t.Errorf("Summary output = %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	full := renderBar(10, 10)
	if strings.Contains(full, ">") {
		t.Errorf("full bar contains cursor: %q", full)
	}
	empty := renderBar(0, 10)
	if !strings.HasPrefix(empty, "[>") {
		t.Errorf("empty bar = %q", empty)
	}
	if len(full) != barWidth+2 {
		t.Errorf("bar width = %d, want %d", len(full), barWidth+2)
	}
}
