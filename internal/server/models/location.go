package models

import "time"

// Location is shared reference data: a store or site where invoices are captured.
type Location struct {
	ID           string
	Name         string
	Address      *string
	Code         *string
	GPSLatitude  *float64
	GPSLongitude *float64
	CreatedAt    time.Time
}

// HasGPS reports whether both coordinates are known.
func (l *Location) HasGPS() bool {
	return l != nil && l.GPSLatitude != nil && l.GPSLongitude != nil
}
