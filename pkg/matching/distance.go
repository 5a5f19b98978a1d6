package matching

import (
	"math"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

const (
	departmentCodeLength = 2
	corsicaDepartment    = 20
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Distance returns the great-circle distance in kilometers (Haversine).
func Distance(from Coordinates, to Coordinates) float64 {
	fromLatitude := toRadians(from.Latitude)
	toLatitude := toRadians(to.Latitude)
	deltaLatitude := toRadians(to.Latitude - from.Latitude)
	deltaLongitude := toRadians(to.Longitude - from.Longitude)

	a := math.Sin(deltaLatitude/2)*math.Sin(deltaLatitude/2) +
		math.Cos(fromLatitude)*math.Cos(toLatitude)*
			math.Sin(deltaLongitude/2)*math.Sin(deltaLongitude/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Department extracts the numeric department code (first two digits) of a
// French postal code. Corse-du-Sud (2A) and Haute-Corse (2B) both map to 20,
// the prefix of Corsican postal codes.
func Department(postalCode string) (int, bool) {
	trimmed := strings.TrimSpace(postalCode)
	if len(trimmed) < departmentCodeLength {
		return 0, false
	}
	prefix := strings.ToUpper(trimmed[:departmentCodeLength])
	if prefix == "2A" || prefix == "2B" {
		return corsicaDepartment, true
	}
	code, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return code, true
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
