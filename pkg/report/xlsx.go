package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultTitle heads every worksheet.
const DefaultTitle = "Free & Open Source Software (FOSS) Usage"

const (
	titleRow  = 1
	headerRow = 3
)

// XLSXWriter builds an Excel workbook. Each sheet gets a title row, a
// blank row, the header with an autofilter, then the data rows.
type XLSXWriter struct {
	file        *excelize.File
	title       string
	headerStyle int
	titleStyle  int
	next        map[string]int // next free row per sheet
	widths      map[string][]int
	sheets      int
}

// NewXLSXWriter returns an empty workbook. An empty title uses [DefaultTitle].
func NewXLSXWriter(title string) (*XLSXWriter, error) {
	if title == "" {
		title = DefaultTitle
	}
	f := excelize.NewFile()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, err
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}
	return &XLSXWriter{
		file:        f,
		title:       title,
		headerStyle: headerStyle,
		titleStyle:  titleStyle,
		next:        make(map[string]int),
		widths:      make(map[string][]int),
	}, nil
}

func (x *XLSXWriter) AddHeader(sheet string, titles []string) error {
	if _, ok := x.next[sheet]; ok {
		return fmt.Errorf("xlsx: sheet %q already has a header", sheet)
	}
	if x.sheets == 0 {
		if err := x.file.SetSheetName(x.file.GetSheetName(0), sheet); err != nil {
			return err
		}
	} else if _, err := x.file.NewSheet(sheet); err != nil {
		return err
	}
	x.sheets++

	title, _ := excelize.CoordinatesToCellName(1, titleRow)
	if err := x.file.SetCellValue(sheet, title, x.title); err != nil {
		return err
	}
	if err := x.file.SetCellStyle(sheet, title, title, x.titleStyle); err != nil {
		return err
	}

	header, _ := excelize.CoordinatesToCellName(1, headerRow)
	if err := x.file.SetSheetRow(sheet, header, &titles); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(titles), headerRow)
	if err := x.file.SetCellStyle(sheet, header, last, x.headerStyle); err != nil {
		return err
	}
	if err := x.file.AutoFilter(sheet, header+":"+last, nil); err != nil {
		return err
	}

	x.next[sheet] = headerRow + 1
	x.widths[sheet] = make([]int, len(titles))
	x.track(sheet, toAny(titles))
	return nil
}

func (x *XLSXWriter) EmitRow(sheet string, values []any) error {
	row, ok := x.next[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHeader, sheet)
	}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := x.file.SetSheetRow(sheet, cell, &values); err != nil {
		return err
	}
	x.next[sheet] = row + 1
	x.track(sheet, values)
	return nil
}

// track remembers the widest value per column for sizing.
func (x *XLSXWriter) track(sheet string, values []any) {
	widths := x.widths[sheet]
	for i, v := range values {
		if i >= len(widths) {
			break
		}
		widths[i] = max(widths[i], len(fmt.Sprint(v)))
	}
}

func (x *XLSXWriter) fitColumns() error {
	for sheet, widths := range x.widths {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := x.file.SetColWidth(sheet, col, col, float64(min(max(w, 8), 60)+2)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Save writes the workbook to path.
func (x *XLSXWriter) Save(path string) error {
	if err := x.fitColumns(); err != nil {
		return err
	}
	return x.file.SaveAs(path)
}

// WriteTo writes the workbook to w.
func (x *XLSXWriter) WriteTo(w io.Writer) (int64, error) {
	if err := x.fitColumns(); err != nil {
		return 0, err
	}
	return x.file.WriteTo(w)
}

// Close releases the workbook.
func (x *XLSXWriter) Close() error { return x.file.Close() }

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
