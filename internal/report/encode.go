package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/access-cli/internal/dataset"
)

type jsonCoverage struct {
	CoverageRatio     any          `json:"coverage_ratio"`
	CoveredPopulation any          `json:"covered_population"`
	TotalPopulation   any          `json:"total_population"`
	Weighted          bool         `json:"weighted"`
	Threshold         any          `json:"threshold"`
	Unit              dataset.Unit `json:"unit"`
}

type jsonEquity struct {
	ServicesPer1000  any `json:"services_per_1000"`
	PeoplePerService any `json:"people_per_service"`
}

type jsonRow struct {
	Category string       `json:"category"`
	Services int          `json:"services"`
	Coverage jsonCoverage `json:"coverage"`
	Equity   *jsonEquity  `json:"equity,omitempty"`
}

type jsonReport struct {
	ID        string    `json:"id"`
	Study     string    `json:"study"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	Rows      []jsonRow `json:"rows"`
}

// WriteJSON renders r as indented JSON. Infinite values, such as the burden
// of a category with no services, are written as the string "+Inf".
func WriteJSON(w io.Writer, r *Report) error {
	out := jsonReport{ID: r.ID, Study: r.Study, Mode: r.Mode, CreatedAt: r.CreatedAt, Rows: make([]jsonRow, len(r.Rows))}
	for i, row := range r.Rows {
		c := row.Coverage
		out.Rows[i] = jsonRow{
			Category: row.Category,
			Services: row.Services,
			Coverage: jsonCoverage{
				CoverageRatio:     finite(c.CoverageRatio),
				CoveredPopulation: finite(c.CoveredPopulation),
				TotalPopulation:   finite(c.TotalPopulation),
				Weighted:          c.Weighted,
				Threshold:         finite(c.Threshold),
				Unit:              c.Unit,
			},
		}
		if row.Equity != nil {
			out.Rows[i].Equity = &jsonEquity{
				ServicesPer1000:  finite(row.Equity.ServicesPer1000),
				PeoplePerService: finite(row.Equity.PeoplePerService),
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// WriteYAML renders r as YAML. YAML spells infinity natively (.inf).
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return nil
}
