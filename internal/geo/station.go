// Package geo resolves the police station nearest to a citizen's position.
package geo

import (
	"math"

	"crimewatch/backend/internal/config"
)

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a finite coordinate inside the WGS84 range.
func (p Point) Valid() bool {
	for _, v := range []float64{p.Lat, p.Lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Station is a fixed police-station reference record. Stations are loaded once and never persisted.
type Station struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the station coordinates.
func (s Station) Point() Point { return Point{Lat: s.Latitude, Lng: s.Longitude} }

// LocationLabel is the alert location text for a resolved station.
func LocationLabel(s *Station) string {
	if s == nil || s.Name == "" {
		return config.UnknownLocation
	}
	return s.Name
}

// DefaultStations returns the station list bundled with the service.
func DefaultStations() []Station {
	return []Station{
		{ID: "ps-001", Name: "Egmore Police Station", Address: "Pantheon Road, Egmore, Chennai 600008", Phone: "044-28193099", Latitude: 13.0732, Longitude: 80.2609},
		{ID: "ps-002", Name: "Mylapore Police Station", Address: "R.K. Mutt Road, Mylapore, Chennai 600004", Phone: "044-24983206", Latitude: 13.0339, Longitude: 80.2696},
		{ID: "ps-003", Name: "T. Nagar Police Station", Address: "Pondy Bazaar, T. Nagar, Chennai 600017", Phone: "044-24340421", Latitude: 13.0418, Longitude: 80.2341},
		{ID: "ps-004", Name: "Anna Nagar Police Station", Address: "2nd Avenue, Anna Nagar, Chennai 600040", Phone: "044-26211083", Latitude: 13.0850, Longitude: 80.2101},
		{ID: "ps-005", Name: "Adyar Police Station", Address: "L.B. Road, Adyar, Chennai 600020", Phone: "044-24917979", Latitude: 13.0012, Longitude: 80.2565},
		{ID: "ps-006", Name: "Flower Bazaar Police Station", Address: "N.S.C. Bose Road, George Town, Chennai 600001", Phone: "044-25222666", Latitude: 13.0916, Longitude: 80.2824},
		{ID: "ps-007", Name: "Velachery Police Station", Address: "Velachery Main Road, Chennai 600042", Phone: "044-22432027", Latitude: 12.9791, Longitude: 80.2209},
		{ID: "ps-008", Name: "Tambaram Police Station", Address: "GST Road, Tambaram, Chennai 600045", Phone: "044-22262323", Latitude: 12.9249, Longitude: 80.1275},
	}
}
