package source

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/access-cli/internal/dataset"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads CSV records and sends them, header first, to a channel.
// Fields are space-trimmed. Caller must consume the returned row channel;
// errors are sent on the error channel. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// csvRow is one data record addressed by header name.
type csvRow struct {
	line   int
	header map[string]int
	fields []string
}

func (r csvRow) get(name string) (string, bool) {
	i, ok := r.header[name]
	if !ok || i >= len(r.fields) {
		return "", false
	}
	return r.fields[i], true
}

func (r csvRow) float(name string) (float64, error) {
	v, ok := r.get(name)
	if !ok || v == "" {
		return 0, eris.Errorf("source: line %d: missing %s", r.line, name)
	}
	f, err := parseFloat(v, name)
	if err != nil {
		return 0, eris.Wrapf(err, "source: line %d", r.line)
	}
	return f, nil
}

func (r csvRow) point() (dataset.Point, error) {
	x, err := r.float(ColumnX)
	if err != nil {
		return dataset.Point{}, err
	}
	y, err := r.float(ColumnY)
	if err != nil {
		return dataset.Point{}, err
	}
	return dataset.Point{X: x, Y: y}, nil
}

// eachCSV streams r and calls header once, then fn per data record. Header
// names are lower-cased. A header missing any of required fails before fn
// is called.
func eachCSV(ctx context.Context, r io.Reader, opts CSVOptions, required []string, header func(map[string]int), fn func(csvRow) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := StreamCSV(ctx, r, opts)
	var cols map[string]int
	line := 0
	var fnErr error
	for rec := range rowCh {
		line++
		if fnErr != nil {
			continue
		}
		if cols == nil {
			cols = make(map[string]int, len(rec))
			for i, name := range rec {
				cols[strings.ToLower(name)] = i
			}
			for _, name := range required {
				if _, ok := cols[name]; !ok {
					fnErr = eris.Errorf("source: CSV header is missing column %q", name)
					cancel()
					break
				}
			}
			if fnErr == nil && header != nil {
				header(cols)
			}
			continue
		}
		if err := fn(csvRow{line: line, header: cols, fields: rec}); err != nil {
			fnErr = err
			cancel()
		}
	}
	if fnErr != nil {
		return fnErr
	}
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	if cols == nil {
		return eris.New("source: CSV has no header row")
	}
	return nil
}

// ReadPopulationCSV reads x, y and an optional population column. Without a
// population column every row counts as one location.
func ReadPopulationCSV(ctx context.Context, r io.Reader, frame dataset.Frame, opts CSVOptions) (dataset.Population, error) {
	var b populationBuilder
	err := eachCSV(ctx, r, opts, []string{ColumnX, ColumnY},
		func(cols map[string]int) {
			_, b.weighted = cols[dataset.WeightColumn]
		},
		func(row csvRow) error {
			p, err := row.point()
			if err != nil {
				return err
			}
			var w float64
			if b.weighted {
				if w, err = row.float(dataset.WeightColumn); err != nil {
					return err
				}
			}
			b.add(p, w)
			return nil
		})
	if err != nil {
		return nil, eris.Wrap(err, "source: read population CSV")
	}
	pop, err := b.build(frame)
	if err != nil {
		return nil, eris.Wrap(err, "source: read population CSV")
	}
	zap.L().Debug("source: loaded population", zap.String("format", "csv"), zap.Int("rows", pop.Len()), zap.Bool("weighted", b.weighted))
	return pop, nil
}

// ReadCatalogCSV reads service points (x, y) classified either by a
// category column or by OSM tag columns (amenity, shop, ...).
func ReadCatalogCSV(ctx context.Context, r io.Reader, frame dataset.Frame, opts CSVOptions) (*dataset.Catalog, error) {
	b := newCatalogBuilder(frame)
	err := eachCSV(ctx, r, opts, []string{ColumnX, ColumnY}, nil, func(row csvRow) error {
		p, err := row.point()
		if err != nil {
			return err
		}
		b.add(p, classify(row.get))
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "source: read services CSV")
	}
	if b.unmatched > 0 {
		zap.L().Debug("source: skipped services matching no category", zap.Int("skipped", b.unmatched))
	}
	return b.build(), nil
}
