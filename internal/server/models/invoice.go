package models

import "time"

// InvoiceStatus tracks where a capture session is in its lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusCompleted InvoiceStatus = "completed"
	InvoiceStatusSynced    InvoiceStatus = "synced"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusCompleted, InvoiceStatusSynced:
		return true
	}
	return false
}

// Invoice is the metadata record of one photo-capture session. UserID is the
// owner and never changes after creation.
type Invoice struct {
	ID         string
	UserID     string
	LocationID *string
	CategoryID *int64
	Status     InvoiceStatus
	Note       *string
	Metadata   map[string]any
	CapturedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  *time.Time

	// Attachments is only populated when explicitly requested.
	Attachments []*Attachment
}

// InvoiceFilter narrows invoice listings. Zero values mean "no filter".
type InvoiceFilter struct {
	UserID     string
	LocationID string
	CategoryID *int64
	Status     InvoiceStatus
	Offset     int
	Limit      int
}
