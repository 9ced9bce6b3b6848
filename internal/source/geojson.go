package source

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
)

func readFeatures(r io.Reader) ([]*geojson.Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "source: read GeoJSON")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "source: decode GeoJSON feature collection")
	}
	return fc.Features, nil
}

// propertyString renders a scalar GeoJSON property as text.
func propertyString(props map[string]any, name string) (string, bool) {
	for k, v := range props {
		if !strings.EqualFold(k, name) || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(t), true
		default:
			return fmt.Sprint(t), true
		}
	}
	return "", false
}

func featureAttrs(f *geojson.Feature) attrs {
	return func(name string) (string, bool) { return propertyString(f.Properties, name) }
}

// ReadPopulationGeoJSON reads a feature collection of population locations.
// The collection is weighted when any feature carries a population property,
// in which case every feature must.
func ReadPopulationGeoJSON(r io.Reader, frame dataset.Frame) (dataset.Population, error) {
	features, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	var b populationBuilder
	for _, f := range features {
		if _, ok := propertyString(f.Properties, dataset.WeightColumn); ok {
			b.weighted = true
			break
		}
	}

	for i, f := range features {
		p, err := dataset.PointFromGeom(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "source: population feature %d", i)
		}
		var w float64
		if b.weighted {
			v, ok := propertyString(f.Properties, dataset.WeightColumn)
			if !ok {
				return nil, eris.Errorf("source: population feature %d has no %s property", i, dataset.WeightColumn)
			}
			if w, err = parseFloat(v, dataset.WeightColumn); err != nil {
				return nil, eris.Wrapf(err, "source: population feature %d", i)
			}
		}
		b.add(p, w)
	}

	pop, err := b.build(frame)
	if err != nil {
		return nil, eris.Wrap(err, "source: read population GeoJSON")
	}
	zap.L().Debug("source: loaded population", zap.String("format", "geojson"), zap.Int("rows", pop.Len()), zap.Bool("weighted", b.weighted))
	return pop, nil
}

// ReadCatalogGeoJSON reads service features, reducing polygons to their
// centroid. Features without geometry are skipped.
func ReadCatalogGeoJSON(r io.Reader, frame dataset.Frame) (*dataset.Catalog, error) {
	features, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	b := newCatalogBuilder(frame)
	var skipped int
	for i, f := range features {
		if f.Geometry == nil {
			skipped++
			continue
		}
		p, err := dataset.PointFromGeom(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "source: service feature %d", i)
		}
		b.add(p, classify(featureAttrs(f)))
	}
	if skipped+b.unmatched > 0 {
		zap.L().Debug("source: skipped service features",
			zap.Int("no_geometry", skipped),
			zap.Int("no_category", b.unmatched))
	}
	return b.build(), nil
}
