package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance between a and b in kilometres (haversine).
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h just past 1 for antipodal points
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Nearest returns the station closest to p. The second result is false when stations is empty
// or p is not a valid coordinate. Ties keep the first station in list order.
func Nearest(p Point, stations []Station) (Station, bool) {
	if len(stations) == 0 || !p.Valid() {
		return Station{}, false
	}

	best := stations[0]
	bestDist := Distance(p, best.Point())
	for _, s := range stations[1:] {
		if d := Distance(p, s.Point()); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, true
}

// Resolver keeps the station list loaded at startup.
type Resolver struct {
	stations []Station
}

// NewResolver copies stations so later edits by the caller do not leak in.
func NewResolver(stations []Station) *Resolver {
	return &Resolver{stations: append([]Station(nil), stations...)}
}

// Resolve returns the nearest station, or nil when no station is configured or p is invalid.
func (r *Resolver) Resolve(p Point) *Station {
	s, ok := Nearest(p, r.stations)
	if !ok {
		return nil
	}
	return &s
}

// Stations returns a copy of the configured list.
func (r *Resolver) Stations() []Station {
	return append([]Station(nil), r.stations...)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
