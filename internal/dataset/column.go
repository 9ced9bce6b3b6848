package dataset

// Column is a named per-row distance column with its unit. Unreachable rows
// hold +Inf.
type Column struct {
	Name   string
	Unit   Unit
	Values []float64
}

// Convert returns a copy of the column expressed in another unit.
func (c Column) Convert(to Unit) (Column, error) {
	f, ok := c.Unit.factor(to)
	if !ok {
		return Column{}, &UnitMismatchError{Have: c.Unit, Want: to}
	}
	out := Column{Name: c.Name, Unit: to, Values: make([]float64, len(c.Values))}
	for i, v := range c.Values {
		out.Values[i] = scale(v, f)
	}
	return out, nil
}
