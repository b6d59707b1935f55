package batch

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"lwdecomp/internal/model"
)

var (
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// lineReporter prints one progress line per job. With a single worker
// the module name is printed before the engine runs and the verdict is
// appended when it returns; with several workers whole lines are printed
// on completion so they never interleave.
type lineReporter struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	inline  bool
	pending bool
}

func newLineReporter(out io.Writer, color bool, workers int) *lineReporter {
	if out == nil {
		out = io.Discard
	}
	return &lineReporter{out: out, color: color, inline: workers <= 1}
}

func (r *lineReporter) Start(job model.DecompJob) {
	if !r.inline {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Decompiling %s... ", job.Module)
	r.pending = true
}

func (r *lineReporter) Finish(o model.JobOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pending {
		fmt.Fprintf(r.out, "Decompiling %s... ", o.Module)
	}
	r.pending = false
	if o.Succeeded() {
		fmt.Fprintf(r.out, "%s in %dms!\n", r.style(doneStyle, "done"), o.Elapsed.Milliseconds())
		return
	}
	fmt.Fprintf(r.out, "%s %s\n", r.style(errorStyle, "error!"), r.style(mutedStyle, fmt.Sprintf("(%dms)", o.Elapsed.Milliseconds())))
	fmt.Fprintf(r.out, "  Error: %s\n", o.Message)
}

func (r *lineReporter) Summary(res *model.BatchResult, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	detail := fmt.Sprintf("(%d succeeded, %d failed)", res.Succeeded, res.Failed)
	if res.Failed > 0 {
		detail = r.style(errorStyle, detail)
	} else {
		detail = r.style(mutedStyle, detail)
	}
	fmt.Fprintf(r.out, "Decompilation done in %dms! %s\n", elapsed.Milliseconds(), detail)
}

func (r *lineReporter) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}
