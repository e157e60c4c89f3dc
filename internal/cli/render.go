package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openlyhq/openly/internal/engine/batch"
)

// Result table column widths for styled output.
const (
	colIndexWidth  = 4
	colItemWidth   = 28
	colStatusWidth = 8
	colDetailWidth = 48
	tableChrome    = 2 // header line plus its bottom border
	statusOK       = "ok"
	statusFailed   = "failed"
)

func headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(boxBorderColor()).
		BorderBottom(true).
		Foreground(boxTitleColor()).
		Bold(true)
}

func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }

func boxTitleColor() lipgloss.Color { return lipgloss.Color("39") }

func colorOK() lipgloss.Color { return lipgloss.Color("42") }

func colorPartial() lipgloss.Color { return lipgloss.Color("214") }

func colorFailed() lipgloss.Color { return lipgloss.Color("196") }

// describeFunc names an item and summarizes a successful outcome for the
// result table.
type describeFunc[TIn, TOut any] func(r batch.ItemResult[TIn, TOut]) (item, detail string)

// resultRow is one rendered line of a report.
type resultRow struct {
	index  string
	item   string
	status string
	detail string
}

func buildRows[TIn, TOut any](report *batch.Report[TIn, TOut], describe describeFunc[TIn, TOut]) []resultRow {
	rows := make([]resultRow, len(report.Results))
	for i, r := range report.Results {
		item, detail := describe(r)
		row := resultRow{index: strconv.Itoa(r.Index + 1), item: item, status: statusOK, detail: detail}
		if r.Failed() {
			row.status = statusFailed
			row.detail = r.Message
		}
		rows[i] = row
	}
	return rows
}

// renderReport writes the report as a table (styled on a terminal, plain
// otherwise) or as indented JSON.
func renderReport[TIn, TOut any](
	w io.Writer,
	format string,
	precision int,
	report *batch.Report[TIn, TOut],
	describe describeFunc[TIn, TOut],
) error {
	if format == formatJSON {
		return renderJSON(w, report)
	}

	rows := buildRows(report, describe)
	if isWriterTerminal(w) {
		_, err := fmt.Fprintln(w, renderStyledTable(rows))
		return err
	}
	return renderPlainTable(w, rows, report.Stats, precision)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// renderStyledTable renders rows with bubbles/table.
func renderStyledTable(rows []resultRow) string {
	columns := []table.Column{
		{Title: "#", Width: colIndexWidth},
		{Title: "Item", Width: colItemWidth},
		{Title: "Status", Width: colStatusWidth},
		{Title: "Detail", Width: colDetailWidth},
	}

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row{r.index, r.item, r.status, r.detail}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+tableChrome),
	)

	s := table.DefaultStyles()
	s.Header = headerStyle()
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return t.View()
}

// renderPlainTable renders rows with a tabwriter, followed by a totals line.
func renderPlainTable(w io.Writer, rows []resultRow, stats batch.Stats, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tSTATUS\tDETAIL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.index, r.item, r.status, r.detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	_, err := p.Fprintf(w, "\nSucceeded: %d  Failed: %d  Total: %d", stats.Successful, stats.Failed, stats.Total)
	if err != nil {
		return err
	}
	if stats.TotalAmount != 0 {
		if _, err = fmt.Fprintf(w, "  Amount: %s", formatAmount(stats.TotalAmount, precision)); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w)
	return err
}

// formatAmount renders an amount with thousands separators.
func formatAmount(amount float64, precision int) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", precision, amount)
}

// isWriterTerminal reports whether w is a terminal. Buffers used in tests
// never are.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}
