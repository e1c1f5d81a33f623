package models

// ValidCoordinates reports whether an optional latitude/longitude pair is in
// range. Both must be set together, or neither.
func ValidCoordinates(lat, lon *float64) bool {
	if lat == nil && lon == nil {
		return true
	}
	if lat == nil || lon == nil {
		return false
	}
	return *lat >= -90 && *lat <= 90 && *lon >= -180 && *lon <= 180
}
