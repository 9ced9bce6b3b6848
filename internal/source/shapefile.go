package source

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
)

// shapeToGeom converts a go-shp shape to a go-geom geometry. Returns nil for
// unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineToMultiLineString(s)
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	}
	return nil
}

// partRange returns the point range of part i.
func partRange(parts []int32, numPoints int, i int32) (int32, int32) {
	end := int32(numPoints)
	if int(i)+1 < len(parts) {
		end = parts[i+1]
	}
	return parts[i], end
}

func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partRange(pl.Parts, len(pl.Points), i)
		ls := geom.NewLineStringFlat(geom.XY, flatPoints(pl.Points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("source: skipping malformed line part", zap.Int32("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToMultiPolygon groups shapefile rings into polygons. Clockwise rings
// are exteriors; counter-clockwise rings are holes of the preceding exterior.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var poly *geom.Polygon
	flush := func() {
		if poly == nil {
			return
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("source: skipping malformed polygon part", zap.Error(err))
		}
		poly = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start, end := partRange(p.Parts, len(p.Points), i)
		if end-start < 4 {
			zap.L().Debug("source: skipping short polygon ring", zap.Int32("part", i))
			continue
		}
		flat := flatPoints(p.Points[start:end])
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if poly == nil || !xy.IsRingCounterClockwise(geom.XY, flat) {
			flush()
			poly = geom.NewPolygon(geom.XY)
		}
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("source: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// eachShape opens a shapefile and calls fn for every record with a usable
// geometry. Field names are lower-cased.
func eachShape(path string, header func(map[string]int), fn func(i int, p dataset.Point, get attrs) error) (skipped int, err error) {
	reader, err := shp.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "source: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	if header != nil {
		header(fieldIdx)
	}

	for reader.Next() {
		n, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}
		p, err := dataset.PointFromGeom(g)
		if err != nil {
			skipped++
			continue
		}
		get := func(name string) (string, bool) {
			idx, ok := fieldIdx[name]
			if !ok {
				return "", false
			}
			v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
			return v, true
		}
		if err := fn(n, p, get); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// ReadPopulationShapefile reads population records. The dataset is weighted
// when the attribute table has a population field.
func ReadPopulationShapefile(path string, frame dataset.Frame) (dataset.Population, error) {
	var b populationBuilder
	skipped, err := eachShape(path,
		func(fields map[string]int) {
			_, b.weighted = fields[dataset.WeightColumn]
		},
		func(i int, p dataset.Point, get attrs) error {
			var w float64
			if b.weighted {
				v, _ := get(dataset.WeightColumn)
				var err error
				if w, err = parseFloat(v, dataset.WeightColumn); err != nil {
					return eris.Wrapf(err, "source: shapefile record %d", i)
				}
			}
			b.add(p, w)
			return nil
		})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		zap.L().Debug("source: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	pop, err := b.build(frame)
	if err != nil {
		return nil, eris.Wrap(err, "source: read population shapefile")
	}
	return pop, nil
}

// ReadCatalogShapefile reads service records classified by a category field
// or OSM tag fields.
func ReadCatalogShapefile(path string, frame dataset.Frame) (*dataset.Catalog, error) {
	b := newCatalogBuilder(frame)
	skipped, err := eachShape(path, nil, func(_ int, p dataset.Point, get attrs) error {
		b.add(p, classify(get))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped+b.unmatched > 0 {
		zap.L().Debug("source: skipped shapefile records",
			zap.String("path", path),
			zap.Int("no_geometry", skipped),
			zap.Int("no_category", b.unmatched))
	}
	return b.build(), nil
}
