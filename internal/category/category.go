// Package category defines the built-in service categories and maps
// OpenStreetMap feature tags onto them.
package category

import (
	"sort"

	"github.com/sells-group/access-cli/internal/dataset"
)

// Built-in service categories.
const (
	Healthcare      = "healthcare"
	EducationEarly  = "education_early"
	EducationSchool = "education_school"
	EducationHigher = "education_higher"
	Food            = "food"
	Emergency       = "emergency"
	GreenSpace      = "green_space"
	PublicTransport = "public_transport"
)

// TagKeys are the OSM keys consulted when classifying a feature.
var TagKeys = []string{"amenity", "shop", "leisure", "highway", "railway", "public_transport"}

// Definition is one category: a feature matches when any of its tags has a
// listed value.
type Definition struct {
	Name string              `json:"name" yaml:"name"`
	Tags map[string][]string `json:"tags" yaml:"tags"`
}

var definitions = []Definition{
	{Name: Healthcare, Tags: map[string][]string{"amenity": {"hospital", "clinic", "doctors", "pharmacy"}}},
	{Name: EducationEarly, Tags: map[string][]string{"amenity": {"kindergarten"}}},
	{Name: EducationSchool, Tags: map[string][]string{"amenity": {"school"}}},
	{Name: EducationHigher, Tags: map[string][]string{"amenity": {"college", "university"}}},
	{Name: Food, Tags: map[string][]string{"shop": {"supermarket", "convenience", "greengrocer", "bakery"}}},
	{Name: Emergency, Tags: map[string][]string{"amenity": {"fire_station", "police", "ambulance_station"}}},
	{Name: GreenSpace, Tags: map[string][]string{"leisure": {"park"}}},
	{Name: PublicTransport, Tags: map[string][]string{
		"highway":          {"bus_stop"},
		"railway":          {"station"},
		"public_transport": {"station"},
	}},
}

// lookup is key -> value -> categories, built once.
var lookup = func() map[string]map[string][]string {
	m := make(map[string]map[string][]string)
	for _, d := range definitions {
		for key, values := range d.Tags {
			if m[key] == nil {
				m[key] = make(map[string][]string)
			}
			for _, v := range values {
				m[key][v] = append(m[key][v], d.Name)
			}
		}
	}
	return m
}()

// Definitions returns the built-in categories in declaration order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	for i, d := range definitions {
		tags := make(map[string][]string, len(d.Tags))
		for k, v := range d.Tags {
			tags[k] = append([]string(nil), v...)
		}
		out[i] = Definition{Name: d.Name, Tags: tags}
	}
	return out
}

// Names returns the built-in category names in declaration order.
func Names() []string {
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.Name
	}
	return names
}

// Lookup returns the named definition, or a *dataset.NotFoundError listing
// the known categories.
func Lookup(name string) (Definition, error) {
	for _, d := range Definitions() {
		if d.Name == name {
			return d, nil
		}
	}
	known := Names()
	sort.Strings(known)
	return Definition{}, &dataset.NotFoundError{Kind: "category", Key: name, Available: known}
}

// Match returns every category the tagged feature belongs to, sorted. A
// railway station tagged public_transport=station is reported once.
func Match(tags map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, key := range TagKeys {
		v, ok := tags[key]
		if !ok {
			continue
		}
		for _, name := range lookup[key][v] {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}
