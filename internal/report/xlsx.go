package report

import (
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetName is the worksheet WriteXLSX fills.
const SheetName = "coverage"

var xlsxHeader = []string{
	"category", "services", "covered_population", "total_population", "weighted",
	"coverage_ratio", "threshold", "unit", "services_per_1000", "people_per_service",
}

// WriteXLSX renders r as a one-sheet workbook.
func WriteXLSX(w io.Writer, r *Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, row := range r.Rows {
		c := row.Coverage
		x := sheet.AddRow()
		x.AddCell().SetString(row.Category)
		x.AddCell().SetInt(row.Services)
		floatCell(x, c.CoveredPopulation)
		floatCell(x, c.TotalPopulation)
		x.AddCell().SetBool(c.Weighted)
		floatCell(x, c.CoverageRatio)
		floatCell(x, c.Threshold)
		x.AddCell().SetString(string(c.Unit))
		if row.Equity != nil {
			floatCell(x, row.Equity.ServicesPer1000)
			floatCell(x, row.Equity.PeoplePerService)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// floatCell appends v, spelling non-finite values as text since the format
// has no infinity.
func floatCell(row *xlsx.Row, v float64) {
	cell := row.AddCell()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		cell.SetString(finite(v).(string))
		return
	}
	cell.SetFloat(v)
}
