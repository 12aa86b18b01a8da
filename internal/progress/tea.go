package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

type tickMsg struct{}
type stopMsg struct{}

const barWidth = 40

// liveModel polls a state source on every tick and renders the two
// cooperating indicators in place. Used when stderr is a TTY.
type liveModel struct {
	stateFn func() State
	view    State
}

func (m liveModel) Init() tea.Cmd {
	return nil
}

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Interrupt
		}
	case tickMsg:
		m.view = m.stateFn()
		return m, nil
	case stopMsg:
		m.view = m.stateFn()
		return m, tea.Quit
	}
	return m, nil
}

func (m liveModel) View() string {
	st := m.view
	var b strings.Builder

	switch st.Phase {
	case PhaseConnecting, PhaseRequesting:
		fmt.Fprintf(&b, "%s ...\n", st.Phase)
	case PhaseReceivingCollection:
		fmt.Fprintf(&b, "receiving %d blob(s)\n", st.OverallLen)
		fmt.Fprintf(&b, "%s %d/%d\n",
			renderBar(int64(st.OverallPos), int64(st.OverallLen)), st.OverallPos, st.OverallLen)
		b.WriteString(itemLine(st))
	case PhaseReceivingSingleItem:
		b.WriteString(itemLine(st))
	case PhaseFinished:
		b.WriteString("done\n")
	case PhaseAborted:
		fmt.Fprintf(&b, "aborted: %s\n", st.AbortCause)
	}
	return b.String()
}

func itemLine(st State) string {
	if !st.ItemActive {
		return "\n"
	}
	return fmt.Sprintf("%s %s/%s\n",
		renderBar(st.ItemPos, st.ItemLen),
		humanize.Bytes(uint64(st.ItemPos)), humanize.Bytes(uint64(st.ItemLen)))
}

// renderBar draws a fixed-width [###>---] bar for pos out of total.
func renderBar(pos, total int64) string {
	filled := 0
	if total > 0 {
		filled = int(int64(barWidth) * pos / total)
	}
	if filled > barWidth {
		filled = barWidth
	}
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			b.WriteByte('#')
		case i == filled && pos < total:
			b.WriteByte('>')
		default:
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}

// RunLiveView starts a terminal UI polling stateFn. The returned stop
// function renders the final state and blocks until the UI has shut down.
func RunLiveView(stateFn func() State) (stop func()) {
	p := tea.NewProgram(liveModel{stateFn: stateFn}, tea.WithOutput(os.Stderr))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run()
	}()
	ticker := time.NewTicker(100 * time.Millisecond)
	tickDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				p.Send(tickMsg{})
			case <-tickDone:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(tickDone)
		p.Send(stopMsg{})
		<-done
	}
}

// IsTTY reports whether f is attached to a character device.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
