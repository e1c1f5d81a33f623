package models

import "time"

// Attachment describes a binary image stored in the attachment store and
// linked to exactly one invoice. The bytes themselves live under FilePath.
type Attachment struct {
	ID           string
	InvoiceID    string
	FilePath     string
	FileName     string
	FileSize     int64
	MimeType     string
	GPSLatitude  *float64
	GPSLongitude *float64
	CreatedAt    time.Time
}
