// Package source loads population, service, and street network datasets
// from CSV, GeoJSON, and shapefiles, and from PostGIS or SQLite tables.
//
// Coordinates are taken as-is in the caller's frame; nothing here
// reprojects. Polygon features are reduced to their centroid.
package source

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/access-cli/internal/category"
	"github.com/sells-group/access-cli/internal/dataset"
)

// Attribute names shared by every source.
const (
	ColumnX        = "x"
	ColumnY        = "y"
	ColumnCategory = "category"
	ColumnGeometry = "geom"
)

// attrs looks up a feature attribute by lower-cased name.
type attrs func(name string) (string, bool)

// classify returns the categories a service feature belongs to. An explicit
// category attribute (comma separated) wins over OSM tags.
func classify(get attrs) []string {
	if v, ok := get(ColumnCategory); ok && strings.TrimSpace(v) != "" {
		var out []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
		return out
	}
	tags := make(map[string]string, len(category.TagKeys))
	for _, key := range category.TagKeys {
		if v, ok := get(key); ok && v != "" {
			tags[key] = v
		}
	}
	return category.Match(tags)
}

// catalogBuilder groups service points by category. Every built-in category
// is present in the result, possibly empty, so "no hospitals here" is a
// finding rather than a lookup failure.
type catalogBuilder struct {
	frame     dataset.Frame
	points    map[string][]dataset.Point
	unmatched int
}

func newCatalogBuilder(frame dataset.Frame) *catalogBuilder {
	b := &catalogBuilder{frame: frame, points: make(map[string][]dataset.Point)}
	for _, name := range category.Names() {
		b.points[name] = nil
	}
	return b
}

func (b *catalogBuilder) add(p dataset.Point, categories []string) {
	if len(categories) == 0 {
		b.unmatched++
		return
	}
	for _, c := range categories {
		b.points[c] = append(b.points[c], p)
	}
}

func (b *catalogBuilder) build() *dataset.Catalog {
	cat := dataset.NewCatalog()
	for name, pts := range b.points {
		cat.Put(name, dataset.NewServices(b.frame, pts))
	}
	return cat
}

// populationBuilder accumulates population rows. weighted is fixed by the
// caller from the schema: a weight column either exists or it does not.
type populationBuilder struct {
	weighted bool
	points   []dataset.Point
	weights  []float64
}

func (b *populationBuilder) add(p dataset.Point, w float64) {
	b.points = append(b.points, p)
	if b.weighted {
		b.weights = append(b.weights, w)
	}
}

func (b *populationBuilder) build(frame dataset.Frame) (dataset.Population, error) {
	if !b.weighted {
		return dataset.NewUnweightedPoints(frame, b.points), nil
	}
	return dataset.NewWeightedPoints(frame, b.points, b.weights)
}

// parseFloat parses a finite number.
func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "source: parse %s %q", what, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("source: %s is not finite: %q", what, s)
	}
	return v, nil
}
