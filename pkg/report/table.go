package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	sheetTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cellStyle       = lipgloss.NewStyle().PaddingRight(1)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// TableWriter renders sheets as terminal tables.
type TableWriter struct {
	sheets
	// Columns limits the rendered columns by header title; empty renders all.
	Columns []string
}

// NewTableWriter returns a writer rendering the given columns.
func NewTableWriter(columns ...string) *TableWriter {
	return &TableWriter{Columns: columns}
}

// Render writes every sheet to w.
func (t *TableWriter) Render(w io.Writer) error {
	for i, sh := range t.order {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := fmt.Fprintln(w, t.renderSheet(sh)); err != nil {
			return err
		}
	}
	return nil
}

func (t *TableWriter) renderSheet(sh *Sheet) string {
	cols := t.columnIndexes(sh.Header)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = sh.Header[c]
	}
	rows := make([][]string, 0, len(sh.Rows))
	for _, row := range sh.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			if c < len(row) {
				cells[i] = fmt.Sprint(row[c])
			}
		}
		rows = append(rows, cells)
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(sheetTitleStyle.Render(sh.Name))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d)", len(sh.Rows))))
	b.WriteString("\n")
	b.WriteString(tbl.Render())
	return b.String()
}

func (t *TableWriter) columnIndexes(header []string) []int {
	var idx []int
	if len(t.Columns) == 0 {
		for i := range header {
			idx = append(idx, i)
		}
		return idx
	}
	for _, want := range t.Columns {
		for i, h := range header {
			if strings.EqualFold(h, want) {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}
