package dataset

import (
	"math"

	"github.com/rotisserie/eris"
)

// Unit tags distance values with the quantity they measure.
type Unit string

// Distance units. Length-based and time-based units never convert into each
// other.
const (
	Meters  Unit = "meters"
	Seconds Unit = "seconds"
	Minutes Unit = "minutes"
)

// IsTime reports whether the unit measures travel time.
func (u Unit) IsTime() bool {
	return u == Seconds || u == Minutes
}

// ParseUnit parses a unit name.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case Meters, Seconds, Minutes:
		return Unit(s), nil
	case "m":
		return Meters, nil
	case "s":
		return Seconds, nil
	case "min":
		return Minutes, nil
	}
	return "", eris.Errorf("dataset: unknown unit %q", s)
}

// factor returns the multiplier converting from u to to.
func (u Unit) factor(to Unit) (float64, bool) {
	if u == to {
		return 1, true
	}
	switch {
	case u == Seconds && to == Minutes:
		return 1.0 / 60.0, true
	case u == Minutes && to == Seconds:
		return 60, true
	}
	return 0, false
}

// Distance is a scalar with a unit.
type Distance struct {
	Value float64
	Unit  Unit
}

// MetersOf returns a length distance.
func MetersOf(v float64) Distance { return Distance{Value: v, Unit: Meters} }

// MinutesOf returns a travel-time distance in minutes.
func MinutesOf(v float64) Distance { return Distance{Value: v, Unit: Minutes} }

// SecondsOf returns a travel-time distance in seconds.
func SecondsOf(v float64) Distance { return Distance{Value: v, Unit: Seconds} }

// In converts d to the target unit.
func (d Distance) In(to Unit) (Distance, error) {
	f, ok := d.Unit.factor(to)
	if !ok {
		return Distance{}, &UnitMismatchError{Have: d.Unit, Want: to}
	}
	return Distance{Value: scale(d.Value, f), Unit: to}, nil
}

// scale multiplies v by f, keeping infinities untouched.
func scale(v, f float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return v * f
}
