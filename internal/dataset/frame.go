// Package dataset defines the in-memory population, service, and distance
// datasets shared by the accessibility and equity calculators.
package dataset

import "fmt"

// Well-known SRIDs.
const (
	SRIDUnknown     = 0
	SRIDWGS84       = 4326
	SRIDWebMercator = 3857
)

// geographicSRIDs lists common frames whose units are degrees.
var geographicSRIDs = map[int]string{
	4326: "WGS 84",
	4269: "NAD83",
	4258: "ETRS89",
	4674: "SIRGAS 2000",
	4283: "GDA94",
	7844: "GDA2020",
	4612: "JGD2000",
	4490: "CGCS2000",
}

// Frame identifies the coordinate reference frame of a dataset.
type Frame struct {
	SRID       int
	Geographic bool
}

// FrameFromSRID returns the frame for an EPSG code. Codes not known to be
// geographic are treated as projected (linear units).
func FrameFromSRID(srid int) Frame {
	_, geographic := geographicSRIDs[srid]
	return Frame{SRID: srid, Geographic: geographic}
}

// Equal reports whether both frames are the same reference frame.
func (f Frame) Equal(o Frame) bool {
	return f.SRID == o.SRID
}

func (f Frame) String() string {
	if name, ok := geographicSRIDs[f.SRID]; ok {
		return fmt.Sprintf("EPSG:%d (%s)", f.SRID, name)
	}
	if f.SRID == SRIDUnknown {
		return "EPSG:unknown"
	}
	return fmt.Sprintf("EPSG:%d", f.SRID)
}

// CheckFrames fails when the frames differ. It returns whether the shared
// frame looks angular, which callers surface as a diagnostic.
func CheckFrames(a, b Frame) (geographic bool, err error) {
	if !a.Equal(b) {
		return false, &FrameMismatchError{Left: a, Right: b}
	}
	return a.Geographic || b.Geographic, nil
}
