package models

// Category classifies invoices (receipt, handover report, ...).
type Category struct {
	ID          int64
	Name        string
	Code        *string
	IconName    *string
	Description *string
	IsActive    bool
}
