package audit

import (
	"cmp"
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Report sheets.
const (
	SheetProduction = "Used in Released Products"
	SheetInternal   = "Used Internally"
)

// Header is the column layout of every sheet.
var Header = []string{
	"Name",
	"Version",
	"Requestor",
	"License",
	"License URL",
	"Used By",
	"Source URL",
	"Internal",
	"Downloads",
}

// RowWriter receives report rows. Rows of a sheet follow its header.
type RowWriter interface {
	AddHeader(sheet string, titles []string) error
	EmitRow(sheet string, values []any) error
}

// Row is one rendered report line.
type Row struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Requestor  string `json:"requestor"`
	License    string `json:"license"`
	LicenseURL string `json:"license_url"`
	UsedBy     string `json:"used_by"`
	SourceURL  string `json:"source_url"`
	Internal   string `json:"internal"`
	Downloads  string `json:"downloads"`
}

// Values returns the row in header order.
func (r Row) Values() []any {
	return []any{r.Name, r.Version, r.Requestor, r.License, r.LicenseURL, r.UsedBy, r.SourceURL, r.Internal, r.Downloads}
}

// Emitter renders package sets as sorted report rows.
type Emitter struct {
	Writer   RowWriter
	Licenses *LicenseInferrer
	Usage    *UsageIndex

	// Namespace marks the organization's own sources, e.g. "github.com:acme/".
	// Packages whose source descriptor contains it are flagged internal.
	Namespace string
}

// Rows sorts packages by name then version and renders one row each.
// Packages no repository uses produce no row.
func (e *Emitter) Rows(ctx context.Context, packages []*Package) []Row {
	sorted := append([]*Package(nil), packages...)
	sort.SliceStable(sorted, func(i, j int) bool { return compareKeys(sorted[i].Key(), sorted[j].Key()) < 0 })

	rows := make([]Row, 0, len(sorted))
	for _, p := range sorted {
		if ctx.Err() != nil {
			break
		}
		k := p.Key()
		if e.Usage == nil || !e.Usage.Has(k) {
			continue
		}
		var license LicenseInfo
		if e.Licenses != nil {
			license = e.Licenses.License(ctx, p)
		} else if cached, ok := p.CachedLicense(); ok {
			license = cached
		}

		row := Row{
			Name:       p.Name,
			Version:    p.Version,
			License:    license.String(),
			LicenseURL: license.URL,
			UsedBy:     joinList(e.Usage.Users(k)),
			SourceURL:  p.SourceURL,
			Internal:   "no",
		}
		if row.SourceURL == "" {
			row.SourceURL = p.Source
		}
		if e.Namespace != "" && strings.Contains(p.Source, e.Namespace) {
			row.Internal = "yes"
		}
		if p.Downloads != nil {
			row.Downloads = strconv.Itoa(*p.Downloads)
		}
		rows = append(rows, row)
	}
	return rows
}

// Emit writes the header and the rows of packages to sheet.
func (e *Emitter) Emit(ctx context.Context, sheet string, packages []*Package) error {
	if err := e.Writer.AddHeader(sheet, Header); err != nil {
		return err
	}
	for _, row := range e.Rows(ctx, packages) {
		if err := e.Writer.EmitRow(sheet, row.Values()); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func joinList(items []string) string { return strings.Join(items, ", ") }

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return CompareVersions(a.Version, b.Version)
}

// CompareVersions orders versions the way RubyGems does. Segments compare
// pairwise, numbers numerically and words lexically, with a word segment
// sorting before any number so "2.0.0.beta1" precedes "2.0.0". Missing
// segments count as zero. A leading "v" is ignored and "-" starts a
// prerelease. Valid versions sort before invalid ones; ties and invalid
// versions fall back to lexical order.
func CompareVersions(a, b string) int {
	sa, oka := versionSegments(a)
	sb, okb := versionSegments(b)
	switch {
	case oka && okb:
		if c := compareSegments(sa, sb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case oka:
		return -1
	case okb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

var gemVersion = regexp.MustCompile(`^[0-9]+(\.[0-9A-Za-z]+)*(-[0-9A-Za-z-]+(\.[0-9A-Za-z-]+)*)?$`)

var segmentPattern = regexp.MustCompile(`[0-9]+|[A-Za-z]+`)

// versionSegments splits a gem version into its numeric and word segments.
func versionSegments(v string) ([]string, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	if !gemVersion.MatchString(v) {
		return nil, false
	}
	v = strings.ReplaceAll(v, "-", ".pre.")
	return segmentPattern.FindAllString(v, -1), true
}

func compareSegments(a, b []string) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		x, y := "0", "0"
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		xn, yn := isDigits(x), isDigits(y)
		switch {
		case xn && yn:
			if c := compareNumeric(x, y); c != 0 {
				return c
			}
		case xn:
			return 1
		case yn:
			return -1
		default:
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return 0
}

// compareNumeric compares digit strings of any length.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return cmp.Compare(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
