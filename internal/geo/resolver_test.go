package geo_test

import (
	"math"
	"math/rand"
	"testing"

	"crimewatch/backend/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance_KnownValues(t *testing.T) {
	chennai := geo.Point{Lat: 13.0827, Lng: 80.2707}
	bengaluru := geo.Point{Lat: 12.9716, Lng: 77.5946}

	assert.InDelta(t, 0, geo.Distance(chennai, chennai), 1e-9)
	// roughly 290 km as the crow flies
	assert.InDelta(t, 290, geo.Distance(chennai, bengaluru), 5)
	assert.InDelta(t, geo.Distance(chennai, bengaluru), geo.Distance(bengaluru, chennai), 1e-9)
}

func TestDistance_Antipodal(t *testing.T) {
	d := geo.Distance(geo.Point{Lat: 0, Lng: 0}, geo.Point{Lat: 0, Lng: 180})
	assert.InDelta(t, 3.14159265*geo.EarthRadiusKm, d, 1)
}

func TestNearest_EmptyList(t *testing.T) {
	_, ok := geo.Nearest(geo.Point{Lat: 13, Lng: 80}, nil)
	assert.False(t, ok)

	r := geo.NewResolver(nil)
	assert.Nil(t, r.Resolve(geo.Point{Lat: 13, Lng: 80}))
	assert.Equal(t, "Unknown location", geo.LocationLabel(r.Resolve(geo.Point{})))
}

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		name string
		p    geo.Point
		want bool
	}{
		{"chennai", geo.Point{Lat: 13.0827, Lng: 80.2707}, true},
		{"corners", geo.Point{Lat: -90, Lng: 180}, true},
		{"NaN latitude", geo.Point{Lat: math.NaN(), Lng: 80}, false},
		{"infinite longitude", geo.Point{Lat: 13, Lng: math.Inf(-1)}, false},
		{"latitude out of range", geo.Point{Lat: 90.5, Lng: 80}, false},
		{"longitude out of range", geo.Point{Lat: 13, Lng: -181}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Valid())
		})
	}
}

func TestNearest_InvalidPoint(t *testing.T) {
	_, ok := geo.Nearest(geo.Point{Lat: math.NaN(), Lng: 80.27}, geo.DefaultStations())
	assert.False(t, ok)
	assert.Nil(t, geo.NewResolver(geo.DefaultStations()).Resolve(geo.Point{Lat: 13, Lng: math.NaN()}))
}

func TestNearest_Scenario(t *testing.T) {
	stations := []geo.Station{
		{Name: "A", Latitude: 13.08, Longitude: 80.27},
		{Name: "B", Latitude: 13.5, Longitude: 80.5},
	}
	s, ok := geo.Nearest(geo.Point{Lat: 13.0827, Lng: 80.2707}, stations)
	require.True(t, ok)
	assert.Equal(t, "A", s.Name)
	assert.Equal(t, "A", geo.LocationLabel(&s))
}

// For every query point the returned station is no farther than any other station.
func TestNearest_Minimality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(20)
		stations := make([]geo.Station, n)
		for j := range stations {
			stations[j] = geo.Station{
				Name:      string(rune('a' + j)),
				Latitude:  rng.Float64()*180 - 90,
				Longitude: rng.Float64()*360 - 180,
			}
		}
		p := geo.Point{Lat: rng.Float64()*180 - 90, Lng: rng.Float64()*360 - 180}

		best, ok := geo.Nearest(p, stations)
		require.True(t, ok)
		bestDist := geo.Distance(p, best.Point())
		for _, s := range stations {
			assert.LessOrEqual(t, bestDist, geo.Distance(p, s.Point()))
		}
	}
}

func TestResolver_CopiesStations(t *testing.T) {
	stations := geo.DefaultStations()
	r := geo.NewResolver(stations)
	stations[0].Name = "mutated"

	assert.NotEqual(t, "mutated", r.Stations()[0].Name)
	assert.Len(t, r.Stations(), len(geo.DefaultStations()))
}

func TestDefaultStations_EgmoreIsNearestToCentral(t *testing.T) {
	r := geo.NewResolver(geo.DefaultStations())
	s := r.Resolve(geo.Point{Lat: 13.0827, Lng: 80.2707})
	require.NotNil(t, s)
	assert.Equal(t, "Egmore Police Station", s.Name)
}
