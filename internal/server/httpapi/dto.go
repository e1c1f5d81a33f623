package httpapi

import (
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
)

type loginRequest struct {
	UserName string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: p.TokenType}
}

type registerRequest struct {
	UserName string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	FullName *string `json:"full_name"`
}

type userUpdateRequest struct {
	UserName  *string      `json:"username"`
	Email     *string      `json:"email" binding:"omitempty,email"`
	Password  *string      `json:"password"`
	FullName  *string      `json:"full_name"`
	AvatarURL *string      `json:"avatar_url"`
	Role      *models.Role `json:"role"`
	IsActive  *bool        `json:"is_active"`
}

func (r userUpdateRequest) toUpdate() services.UserUpdate {
	return services.UserUpdate{
		UserName:  r.UserName,
		Email:     r.Email,
		Password:  r.Password,
		FullName:  r.FullName,
		AvatarURL: r.AvatarURL,
		Role:      r.Role,
		IsActive:  r.IsActive,
	}
}

type userResponse struct {
	ID          string      `json:"id"`
	UserName    string      `json:"username"`
	Email       string      `json:"email"`
	FullName    *string     `json:"full_name"`
	AvatarURL   *string     `json:"avatar_url"`
	Role        models.Role `json:"role"`
	IsActive    bool        `json:"is_active"`
	LastLoginAt *time.Time  `json:"last_login_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		UserName:    u.UserName,
		Email:       u.Email,
		FullName:    u.FullName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type locationRequest struct {
	Name         string   `json:"name" binding:"required"`
	Address      *string  `json:"address"`
	Code         *string  `json:"code"`
	GPSLatitude  *float64 `json:"gps_latitude"`
	GPSLongitude *float64 `json:"gps_longitude"`
}

type locationResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      *string   `json:"address"`
	Code         *string   `json:"code"`
	GPSLatitude  *float64  `json:"gps_latitude"`
	GPSLongitude *float64  `json:"gps_longitude"`
	CreatedAt    time.Time `json:"created_at"`
}

func toLocationResponse(l *models.Location) locationResponse {
	return locationResponse{
		ID:           l.ID,
		Name:         l.Name,
		Address:      l.Address,
		Code:         l.Code,
		GPSLatitude:  l.GPSLatitude,
		GPSLongitude: l.GPSLongitude,
		CreatedAt:    l.CreatedAt,
	}
}

type categoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        *string `json:"code"`
	IconName    *string `json:"icon_name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type categoryResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Code        *string `json:"code"`
	IconName    *string `json:"icon_name"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
}

func toCategoryResponse(c *models.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		IconName:    c.IconName,
		Description: c.Description,
		IsActive:    c.IsActive,
	}
}

type invoiceRequest struct {
	LocationID    *string               `json:"location_id"`
	CategoryID    *int64                `json:"category_id"`
	Status        *models.InvoiceStatus `json:"status"`
	Note          *string               `json:"note"`
	ExtraMetadata map[string]any        `json:"extra_metadata"`
	CapturedAt    *time.Time            `json:"captured_at"`
}

func (r invoiceRequest) toCreate() services.CreateInvoiceInput {
	in := services.CreateInvoiceInput{
		LocationID: r.LocationID,
		CategoryID: r.CategoryID,
		Note:       r.Note,
		Metadata:   r.ExtraMetadata,
	}
	if r.Status != nil {
		in.Status = *r.Status
	}
	if r.CapturedAt != nil {
		in.CapturedAt = *r.CapturedAt
	}
	return in
}

func (r invoiceRequest) toUpdate() services.InvoiceUpdate {
	return services.InvoiceUpdate{
		LocationID: r.LocationID,
		CategoryID: r.CategoryID,
		Status:     r.Status,
		Note:       r.Note,
		Metadata:   r.ExtraMetadata,
		CapturedAt: r.CapturedAt,
	}
}

type invoiceResponse struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	LocationID    *string              `json:"location_id"`
	CategoryID    *int64               `json:"category_id"`
	Status        models.InvoiceStatus `json:"status"`
	Note          *string              `json:"note"`
	ExtraMetadata map[string]any       `json:"extra_metadata"`
	CapturedAt    time.Time            `json:"captured_at"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     *time.Time           `json:"updated_at"`
}

func toInvoiceResponse(inv *models.Invoice) invoiceResponse {
	meta := inv.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return invoiceResponse{
		ID:            inv.ID,
		UserID:        inv.UserID,
		LocationID:    inv.LocationID,
		CategoryID:    inv.CategoryID,
		Status:        inv.Status,
		Note:          inv.Note,
		ExtraMetadata: meta,
		CapturedAt:    inv.CapturedAt,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

// invoiceWithImagesResponse always carries the images key, even when empty.
type invoiceWithImagesResponse struct {
	invoiceResponse
	Images []attachmentResponse `json:"images"`
}

func toInvoiceWithImages(inv *models.Invoice) invoiceWithImagesResponse {
	return invoiceWithImagesResponse{
		invoiceResponse: toInvoiceResponse(inv),
		Images:          toAttachmentResponses(inv.Attachments),
	}
}

type attachmentResponse struct {
	ID           string    `json:"id"`
	InvoiceID    string    `json:"invoice_id"`
	FilePath     string    `json:"file_path"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	GPSLatitude  *float64  `json:"gps_latitude"`
	GPSLongitude *float64  `json:"gps_longitude"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAttachmentResponse(a *models.Attachment) attachmentResponse {
	return attachmentResponse{
		ID:           a.ID,
		InvoiceID:    a.InvoiceID,
		FilePath:     a.FilePath,
		FileName:     a.FileName,
		FileSize:     a.FileSize,
		MimeType:     a.MimeType,
		GPSLatitude:  a.GPSLatitude,
		GPSLongitude: a.GPSLongitude,
		CreatedAt:    a.CreatedAt,
	}
}

func toAttachmentResponses(list []*models.Attachment) []attachmentResponse {
	out := make([]attachmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAttachmentResponse(a))
	}
	return out
}
