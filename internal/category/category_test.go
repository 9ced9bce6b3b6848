package category

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/access-cli/internal/dataset"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want []string
	}{
		{"hospital", map[string]string{"amenity": "hospital"}, []string{Healthcare}},
		{"pharmacy", map[string]string{"amenity": "pharmacy", "name": "Apotheke"}, []string{Healthcare}},
		{"bakery", map[string]string{"shop": "bakery"}, []string{Food}},
		{"park", map[string]string{"leisure": "park"}, []string{GreenSpace}},
		{"station twice", map[string]string{"railway": "station", "public_transport": "station"}, []string{PublicTransport}},
		{"school with shop", map[string]string{"amenity": "school", "shop": "convenience"}, []string{EducationSchool, Food}},
		{"unrelated", map[string]string{"amenity": "bench"}, nil},
		{"unknown key", map[string]string{"building": "hospital"}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.tags))
		})
	}
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 8)
	assert.Equal(t, Healthcare, defs[0].Name)
	assert.Equal(t, Names(), []string{
		Healthcare, EducationEarly, EducationSchool, EducationHigher,
		Food, Emergency, GreenSpace, PublicTransport,
	})

	// Returned definitions are copies.
	defs[0].Tags["amenity"][0] = "spa"
	assert.Equal(t, []string{Healthcare}, Match(map[string]string{"amenity": "hospital"}))
	assert.Equal(t, "hospital", Definitions()[0].Tags["amenity"][0])
}

func TestLookup(t *testing.T) {
	d, err := Lookup(PublicTransport)
	require.NoError(t, err)
	assert.Equal(t, []string{"bus_stop"}, d.Tags["highway"])

	_, err = Lookup("cinema")
	var nf *dataset.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "cinema", nf.Key)
	assert.Contains(t, nf.Available, Food)
}
