package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/openlyhq/openly/internal/engine/batch"
)

const progressBarWidth = 40

// reporter turns batch lifecycle events into terminal output: a loading line
// at start, a progress bar on terminals, and one summary line at the end.
// Individual failures are not announced here; they appear in the result table.
type reporter struct {
	w         io.Writer
	label     string
	precision int
	styled    bool
	bar       progress.Model
}

func newReporter(w io.Writer, label string, precision int) *reporter {
	return &reporter{
		w:         w,
		label:     label,
		precision: precision,
		styled:    isWriterTerminal(w),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
	}
}

func (r *reporter) BatchStarted(_ batch.Operation, total int) {
	fmt.Fprintf(r.w, "Processing %d %s...\n", total, r.label)
}

func (r *reporter) BatchProgress(s batch.ProgressSnapshot) {
	if !r.styled {
		return
	}
	fmt.Fprintf(r.w, "\r%s%s", r.bar.ViewAs(s.PercentComplete/100), progressDetail(s))
	if s.Done() {
		fmt.Fprintln(r.w)
	}
}

// progressDetail renders " 4/10 2.0/s ~3s left" after the bar.
func progressDetail(s batch.ProgressSnapshot) string {
	out := fmt.Sprintf(" %d/%d", s.Completed, s.Total)
	if s.ItemsPerSecond > 0 {
		out += fmt.Sprintf(" %.1f/s", s.ItemsPerSecond)
	}
	if s.Remaining > 0 {
		out += fmt.Sprintf(" ~%s left", s.Remaining.Round(time.Second))
	}
	return out
}

func (r *reporter) BatchFinished(_ batch.Operation, stats batch.Stats) {
	fmt.Fprintln(r.w, r.summary(stats))
}

// summary renders "successful/total" with the amount when there is one.
func (r *reporter) summary(stats batch.Stats) string {
	line := fmt.Sprintf("%s %s succeeded", stats.Summary(), r.label)
	if stats.TotalAmount != 0 {
		line += ", total " + formatAmount(stats.TotalAmount, r.precision)
	}
	if !r.styled {
		return line
	}

	color := colorOK()
	switch {
	case stats.Successful == 0:
		color = colorFailed()
	case stats.Failed > 0:
		color = colorPartial()
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(line)
}
