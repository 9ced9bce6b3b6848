package access

import (
	"sort"

	"github.com/sells-group/access-cli/internal/dataset"
)

// DistanceColumn is the column written by the distance calculators.
const DistanceColumn = "nearest_dist"

// Annotated is a population with derived distance columns. Adding a column
// returns a new value; the population and existing columns are shared
// read-only.
type Annotated struct {
	population dataset.Population
	columns    map[string]dataset.Column
}

// Annotate wraps a population without any distance columns.
func Annotate(p dataset.Population) *Annotated {
	return &Annotated{population: p, columns: map[string]dataset.Column{}}
}

// Population returns the underlying population.
func (a *Annotated) Population() dataset.Population { return a.population }

// Len returns the number of rows.
func (a *Annotated) Len() int { return a.population.Len() }

// WithColumn returns a copy of a carrying col in addition to (or replacing
// the same-named) existing columns.
func (a *Annotated) WithColumn(col dataset.Column) *Annotated {
	cols := make(map[string]dataset.Column, len(a.columns)+1)
	for k, v := range a.columns {
		cols[k] = v
	}
	col.Values = append([]float64(nil), col.Values...)
	cols[col.Name] = col
	return &Annotated{population: a.population, columns: cols}
}

// Column returns a copy of the named column, or a *dataset.MissingColumnError.
func (a *Annotated) Column(name string) (dataset.Column, error) {
	col, ok := a.columns[name]
	if !ok {
		return dataset.Column{}, &dataset.MissingColumnError{Column: name, Available: a.Columns()}
	}
	col.Values = append([]float64(nil), col.Values...)
	return col, nil
}

// Columns returns the column names in sorted order.
func (a *Annotated) Columns() []string {
	names := make([]string, 0, len(a.columns))
	for k := range a.columns {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Distances returns the values of the default distance column, or nil.
func (a *Annotated) Distances() []float64 {
	col, err := a.Column(DistanceColumn)
	if err != nil {
		return nil
	}
	return col.Values
}
