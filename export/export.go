/*
Package export turns finalized allocation reports into downloadable files.

FORMATS:
  text  The bill as rendered by Report.Body()
  csv   One row per sector: sector,label,percent,generated_at
  json  The report as a JSON document

All renderings are deterministic: the same report always yields the same
bytes, so downloads can be compared and cached.

COLLABORATORS:
  FileExporter implements allocation.Exporter and writes the bill into a
  directory. Render is used directly by the HTTP download endpoint.

SEE ALSO:
  - allocation/report.go: Report and its text template
  - api/handlers.go: DownloadReport
*/
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/heatx/energy-engine/allocation"
)

type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists every supported format, text first.
var Formats = []Format{FormatText, FormatCSV, FormatJSON}

// ErrUnknownFormat is returned for a format outside text, csv and json.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts a format name or a file extension. Empty means text.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), ".")) {
	case "", "text", "txt", "plain":
		return FormatText, nil
	case "csv", "tabular":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, v)
}

func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	}
	return "txt"
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Filename is the download name of a report, stamped with its generation time.
func Filename(r allocation.Report, f Format) string {
	return fmt.Sprintf("heatx-allocation-bill-%s.%s", r.GeneratedAt.UTC().Format("20060102T150405Z"), f.Extension())
}

// Render encodes a report in the given format.
func Render(r allocation.Report, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		return []byte(r.Body()), nil
	case FormatCSV:
		return renderCSV(r)
	case FormatJSON:
		return renderJSON(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func renderCSV(r allocation.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	generated := r.GeneratedAt.UTC().Format(time.RFC3339)
	rows := [][]string{{"sector", "label", "percent", "generated_at"}}
	for _, s := range r.Shares() {
		rows = append(rows, []string{string(s.Sector), s.Label, strconv.Itoa(s.Percent), generated})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportDocument is the JSON shape of an exported report.
type ReportDocument struct {
	Title       string          `json:"title"`
	GeneratedAt string          `json:"generated_at"`
	Total       int             `json:"total"`
	Shares      []ShareDocument `json:"shares"`
}

type ShareDocument struct {
	Sector  string `json:"sector"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Percent int    `json:"percent"`
}

// Document converts a report to its JSON shape.
func Document(r allocation.Report) ReportDocument {
	doc := ReportDocument{
		Title:       allocation.ReportTitle,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		Total:       r.Allocation.Sum(),
	}
	for _, s := range r.Shares() {
		doc.Shares = append(doc.Shares, ShareDocument{
			Sector:  string(s.Sector),
			Label:   s.Label,
			Color:   s.Color,
			Percent: s.Percent,
		})
	}
	return doc
}

func renderJSON(r allocation.Report) ([]byte, error) {
	data, err := json.MarshalIndent(Document(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}
