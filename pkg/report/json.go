package report

import (
	"encoding/json"
	"io"
)

// JSONWriter collects sheets for JSON output.
type JSONWriter struct {
	sheets
}

// NewJSONWriter returns an empty writer.
func NewJSONWriter() *JSONWriter { return &JSONWriter{} }

// Sheets returns the collected sheets in header order.
func (j *JSONWriter) Sheets() []*Sheet { return j.order }

// Sheet returns one sheet by name.
func (j *JSONWriter) Sheet(name string) (*Sheet, bool) { return j.sheet(name) }

type jsonSheet struct {
	Name    string           `json:"name"`
	Records []map[string]any `json:"records"`
}

// WriteTo writes all sheets as indented JSON records.
func (j *JSONWriter) WriteTo(w io.Writer) (int64, error) {
	out := make([]jsonSheet, 0, len(j.order))
	for _, sh := range j.order {
		out = append(out, jsonSheet{Name: sh.Name, Records: sh.Records()})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(data, '\n'))
	return int64(n), err
}
