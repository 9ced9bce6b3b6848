// Package report collects per-category accessibility and equity results for
// one study run and renders them as a table, JSON, YAML or a spreadsheet.
package report

import (
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/access-cli/internal/access"
	"github.com/sells-group/access-cli/internal/equity"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatXLSX  = "xlsx"
)

// Row is the result for one service category. Equity is nil when the
// population carries no headcounts.
type Row struct {
	Category string               `json:"category" yaml:"category"`
	Services int                  `json:"services" yaml:"services"`
	Coverage access.CoverageStats `json:"coverage" yaml:"coverage"`
	Equity   *equity.Stats        `json:"equity,omitempty" yaml:"equity,omitempty"`
}

// Report is one study run across several categories.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	Study     string    `json:"study" yaml:"study"`
	Mode      string    `json:"mode" yaml:"mode"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Rows      []Row     `json:"rows" yaml:"rows"`
}

// New starts an empty report.
func New(study, mode string) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Study:     study,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
}

// Add appends a category row.
func (r *Report) Add(row Row) {
	r.Rows = append(r.Rows, row)
}

// Categories lists the reported categories in row order.
func (r *Report) Categories() []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Category
	}
	return out
}

// Write renders r to w in the named format.
func Write(w io.Writer, format string, r *Report) error {
	if r == nil {
		return eris.New("report: nil report")
	}
	switch strings.ToLower(format) {
	case FormatTable, "":
		return WriteTable(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML, "yml":
		return WriteYAML(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	}
	return eris.Errorf("report: unknown format %q (want table, json, yaml or xlsx)", format)
}

// FormatFromPath guesses the output format from a file extension.
func FormatFromPath(path, fallback string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return FormatYAML
	case strings.HasSuffix(path, ".xlsx"):
		return FormatXLSX
	}
	return fallback
}

// finite maps non-finite values to their string spelling for encoders that
// cannot represent them.
func finite(v float64) any {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return v
}
