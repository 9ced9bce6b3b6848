package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteTable renders r as an aligned text table with grouped thousands.
func WriteTable(out io.Writer, r *Report) error {
	p := message.NewPrinter(language.English)

	_, _ = fmt.Fprintf(out, "Study %s (%s) report %s\n\n", r.Study, r.Mode, shortID(r.ID))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tSERVICES\tCOVERED\tTOTAL\tCOVERAGE\tTHRESHOLD\tPER_1000\tPEOPLE/SERVICE")
	_, _ = fmt.Fprintln(w, "--------\t--------\t-------\t-----\t--------\t---------\t--------\t--------------")

	for _, row := range r.Rows {
		c := row.Coverage
		per1000, burden := "-", "-"
		if row.Equity != nil {
			per1000 = number(p, row.Equity.ServicesPer1000, 2)
			burden = number(p, row.Equity.PeoplePerService, 1)
		}
		total := number(p, c.TotalPopulation, 0)
		if !c.Weighted {
			total += " loc"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			row.Category,
			p.Sprintf("%d", row.Services),
			number(p, c.CoveredPopulation, 0),
			total,
			p.Sprintf("%.1f%%", c.CoverageRatio*100),
			number(p, c.Threshold, 0), c.Unit,
			per1000,
			burden,
		)
	}
	return w.Flush()
}

func number(p *message.Printer, v float64, decimals int) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
