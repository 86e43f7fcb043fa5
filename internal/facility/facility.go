// Package facility resolves the nearest emergency-care facility to a crash
// coordinate.
package facility

import (
	"errors"
	"log/slog"

	"github.com/rideguard/rideguard-backend/internal/geo"
	"github.com/rideguard/rideguard-backend/internal/store"
)

// ErrNoFacilities is returned by Nearest when the facility collection is
// empty or no record decoded to a usable location.
var ErrNoFacilities = errors.New("no facilities found")

// Facility is an emergency-care location with a geographic coordinate.
type Facility struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Location geo.Coordinate `json:"location"`
}

// Match is a resolved nearest facility with its distance from the crash.
type Match struct {
	Facility   Facility
	DistanceKm float64
}

// Location field names as persisted by the mobile app. Firestore-exported
// GeoPoints carry the underscore form; manually seeded records the plain one.
var (
	latFields = []string{"_latitude", "latitude"}
	lngFields = []string{"_longitude", "longitude"}
)

// Decode maps raw store records to facilities. A record whose location is
// missing either numeric component is skipped with a warning rather than
// failing the whole collection: partial data must not blind the lookup.
func Decode(records []store.FacilityRecord, logger *slog.Logger) []Facility {
	facilities := make([]Facility, 0, len(records))
	for _, rec := range records {
		loc := rec.Doc.Child("location")
		lat, latOK := firstNum(loc, latFields)
		lng, lngOK := firstNum(loc, lngFields)
		if !latOK || !lngOK {
			logger.Warn("facility has no usable location, skipping", "facility_id", rec.ID)
			continue
		}
		name, _ := rec.Doc.Str("name")
		facilities = append(facilities, Facility{
			ID:       rec.ID,
			Name:     name,
			Location: geo.Coordinate{Lat: lat, Lng: lng},
		})
	}
	return facilities
}

func firstNum(doc store.Document, fields []string) (float64, bool) {
	for _, f := range fields {
		if n, ok := doc.Num(f); ok {
			return n, true
		}
	}
	return 0, false
}

// Nearest scans facilities linearly and returns the one closest to target.
// Equal distances keep the first facility encountered. An empty input
// yields ErrNoFacilities.
func Nearest(target geo.Coordinate, facilities []Facility) (Match, error) {
	if len(facilities) == 0 {
		return Match{}, ErrNoFacilities
	}

	best := Match{Facility: facilities[0], DistanceKm: geo.Distance(target, facilities[0].Location)}
	for _, f := range facilities[1:] {
		if d := geo.Distance(target, f.Location); d < best.DistanceKm {
			best = Match{Facility: f, DistanceKm: d}
		}
	}
	return best, nil
}
