package report

import (
	"errors"
	"fmt"

	"github.com/matzehuels/fossaudit/pkg/audit"
)

// ErrNoHeader is returned when a row arrives for a sheet without a header.
var ErrNoHeader = errors.New("report: row before header")

// Sheet is one collected sheet.
type Sheet struct {
	Name   string   `json:"name"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

// Records returns the rows as objects keyed by header title.
func (s *Sheet) Records() []map[string]any {
	out := make([]map[string]any, 0, len(s.Rows))
	for _, row := range s.Rows {
		rec := make(map[string]any, len(s.Header))
		for i, title := range s.Header {
			if i < len(row) {
				rec[title] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// sheets collects rows in memory, keeping sheet order.
type sheets struct {
	order []*Sheet
	index map[string]*Sheet
}

func (s *sheets) AddHeader(sheet string, titles []string) error {
	if s.index == nil {
		s.index = make(map[string]*Sheet)
	}
	if existing, ok := s.index[sheet]; ok {
		existing.Header = append([]string(nil), titles...)
		return nil
	}
	sh := &Sheet{Name: sheet, Header: append([]string(nil), titles...), Rows: [][]any{}}
	s.index[sheet] = sh
	s.order = append(s.order, sh)
	return nil
}

func (s *sheets) EmitRow(sheet string, values []any) error {
	sh, ok := s.index[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHeader, sheet)
	}
	sh.Rows = append(sh.Rows, append([]any(nil), values...))
	return nil
}

func (s *sheets) sheet(name string) (*Sheet, bool) {
	sh, ok := s.index[name]
	return sh, ok
}

type multi []audit.RowWriter

// Multi returns a writer that forwards to every writer in order and stops
// at the first error.
func Multi(writers ...audit.RowWriter) audit.RowWriter {
	return multi(writers)
}

func (m multi) AddHeader(sheet string, titles []string) error {
	for _, w := range m {
		if err := w.AddHeader(sheet, titles); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) EmitRow(sheet string, values []any) error {
	for _, w := range m {
		if err := w.EmitRow(sheet, values); err != nil {
			return err
		}
	}
	return nil
}
