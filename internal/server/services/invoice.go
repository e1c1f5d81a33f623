package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore"
	"github.com/dmitrijs2005/snaptrack/internal/server/config"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/policy"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/invoices"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/repomanager"
)

// Stage names the point an invoice creation reached.
//
//	Pending -> InvoiceWritten -> Committed                                   (no attachment)
//	Pending -> InvoiceWritten -> AttachmentStaged -> AttachmentWritten -> Committed
type Stage string

const (
	StagePending           Stage = "pending"
	StageInvoiceWritten    Stage = "invoice_written"
	StageAttachmentStaged  Stage = "attachment_staged"
	StageAttachmentWritten Stage = "attachment_written"
	StageCommitted         Stage = "committed"
)

// CreationError reports a creation that committed the invoice but failed
// while attaching the upload. Invoice is persisted and can be retried
// against with UploadAttachment. Stage is the last stage reached.
type CreationError struct {
	Invoice *models.Invoice
	Stage   Stage
	Err     error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("invoice %s stopped at %s: %v", e.Invoice.ID, e.Stage, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// CreateInvoiceInput holds the caller supplied invoice fields. A zero
// CapturedAt lets the database pick the current time.
type CreateInvoiceInput struct {
	LocationID *string
	CategoryID *int64
	Status     models.InvoiceStatus
	Note       *string
	Metadata   map[string]any
	CapturedAt time.Time
}

// InvoiceUpdate carries optional changes; nil fields are left untouched.
type InvoiceUpdate struct {
	LocationID *string
	CategoryID *int64
	Status     *models.InvoiceStatus
	Note       *string
	Metadata   map[string]any
	CapturedAt *time.Time
}

// AttachmentUpload is one binary image to store. Size may be -1 when the
// transport does not know it. Latitude and Longitude are an explicit GPS
// override; when both are nil the invoice location's coordinates are used.
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Latitude    *float64
	Longitude   *float64
}

// InvoiceService coordinates invoice rows, attachment rows and attachment
// blobs. Blob writes are never part of a database transaction.
type InvoiceService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	store         blobstore.Store
	maxUploadSize int64
	logger        logging.Logger
	now           func() time.Time
}

func NewInvoiceService(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store,
	cfg *config.Config, logger logging.Logger) *InvoiceService {
	return &InvoiceService{
		db:            db,
		repomanager:   m,
		store:         store,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        logger.With("module", "invoices"),
		now:           time.Now,
	}
}

// Create validates the input, commits the invoice and, when upload is not
// nil, stores and links the attachment. Failures after the invoice commit
// are returned as *CreationError.
func (s *InvoiceService) Create(ctx context.Context, caller *models.User, in CreateInvoiceInput, upload *AttachmentUpload) (*models.Invoice, error) {
	// Pending
	target := policy.Target{Kind: policy.ResourceInvoice}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionCreate, target); err != nil {
		return nil, err
	}

	if in.Status == "" {
		in.Status = models.InvoiceStatusDraft
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, in.Status)
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	location, err := s.resolveLocation(ctx, s.db, in.LocationID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveCategory(ctx, s.db, in.CategoryID); err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		UserID:     caller.ID,
		LocationID: in.LocationID,
		CategoryID: in.CategoryID,
		Status:     in.Status,
		Note:       in.Note,
		Metadata:   in.Metadata,
		CapturedAt: in.CapturedAt,
	}

	err = dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		inv, err = s.repomanager.Invoices(tx).Create(ctx, inv)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating invoice: %w", err)
	}
	// InvoiceWritten
	inv.Attachments = []*models.Attachment{}

	s.logger.Info(ctx, "invoice created", "invoice_id", inv.ID, "user_id", inv.UserID)

	if upload == nil {
		// Committed
		return inv, nil
	}

	a, stage, err := s.attach(ctx, inv, location, upload)
	if err != nil {
		return nil, &CreationError{Invoice: inv, Stage: stage, Err: err}
	}

	inv.Attachments = append(inv.Attachments, a)
	return inv, nil
}

// attach runs the attachment half of the creation state machine for an
// already committed invoice. It returns the stage reached on failure.
func (s *InvoiceService) attach(ctx context.Context, inv *models.Invoice, location *models.Location, up *AttachmentUpload) (*models.Attachment, Stage, error) {
	lat, lon := up.Latitude, up.Longitude
	if lat == nil && lon == nil && location.HasGPS() {
		lat, lon = location.GPSLatitude, location.GPSLongitude
	}

	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := blobstore.NewKey(s.now(), up.FileName)

	// Bodies of known size go to the store as is; only unknown sizes are counted.
	var body io.Reader = up.Body
	counter := &countingReader{r: up.Body}
	if up.Size < 0 {
		body = counter
	}

	if err := s.store.Put(ctx, key, contentType, body, up.Size); err != nil {
		s.logger.Error(ctx, "attachment blob write failed", "invoice_id", inv.ID, "key", key, "error", err)
		return nil, StageInvoiceWritten, fmt.Errorf("%w: %w", common.ErrStorageFailure, err)
	}
	// AttachmentStaged

	size := up.Size
	if size < 0 {
		size = counter.n
	}

	a := &models.Attachment{
		InvoiceID:    inv.ID,
		FilePath:     key,
		FileName:     up.FileName,
		FileSize:     size,
		MimeType:     contentType,
		GPSLatitude:  lat,
		GPSLongitude: lon,
	}

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		a, err = s.repomanager.Attachments(tx).Create(ctx, a)
		return err
	})
	if err != nil {
		// The blob stays behind; orphaned blobs are not collected.
		s.logger.Error(ctx, "attachment row write failed, blob orphaned",
			"invoice_id", inv.ID, "key", key, "error", err)
		return nil, StageAttachmentStaged, fmt.Errorf("error creating attachment: %w", err)
	}
	// AttachmentWritten -> Committed

	s.logger.Info(ctx, "attachment stored", "invoice_id", inv.ID, "attachment_id", a.ID, "size", a.FileSize)
	return a, StageCommitted, nil
}

// UploadAttachment adds an attachment to an existing invoice. It is also the
// retry path after a Create that failed at StageInvoiceWritten.
func (s *InvoiceService) UploadAttachment(ctx context.Context, caller *models.User, invoiceID string, upload *AttachmentUpload) (*models.Attachment, error) {
	if upload == nil {
		return nil, fmt.Errorf("%w: file is required", common.ErrValidation)
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	inv, target, err := loadInvoiceTarget(ctx, s.repomanager.Invoices(s.db), invoiceID, policy.ResourceInvoice)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionAttach, target); err != nil {
		return nil, err
	}

	var location *models.Location
	if inv.LocationID != nil {
		location, err = s.repomanager.Locations(s.db).GetByID(ctx, *inv.LocationID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}

	a, _, err := s.attach(ctx, inv, location, upload)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *InvoiceService) Get(ctx context.Context, caller *models.User, id string, withAttachments bool) (*models.Invoice, error) {
	inv, target, err := loadInvoiceTarget(ctx, s.repomanager.Invoices(s.db), id, policy.ResourceInvoice)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionRead, target); err != nil {
		return nil, err
	}

	if withAttachments {
		atts, err := s.repomanager.Attachments(s.db).ListByInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		if atts == nil {
			atts = []*models.Attachment{}
		}
		inv.Attachments = atts
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, caller *models.User, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	target := policy.Target{Kind: policy.ResourceInvoice, Exists: true}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionRead, target); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, filter.Status)
	}
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, fmt.Errorf("%w: negative pagination", common.ErrValidation)
	}
	return s.repomanager.Invoices(s.db).List(ctx, filter)
}

// Update changes invoice fields. The owner never changes.
func (s *InvoiceService) Update(ctx context.Context, caller *models.User, id string, upd InvoiceUpdate) (*models.Invoice, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, *upd.Status)
	}

	var updated *models.Invoice
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Invoices(tx)

		inv, target, err := loadInvoiceTarget(ctx, repo, id, policy.ResourceInvoice)
		if err != nil {
			return err
		}
		if err := policy.Check(policy.SubjectOf(caller), policy.ActionUpdate, target); err != nil {
			return err
		}

		if upd.LocationID != nil {
			if _, err := s.resolveLocation(ctx, tx, upd.LocationID); err != nil {
				return err
			}
			inv.LocationID = upd.LocationID
		}
		if upd.CategoryID != nil {
			if err := s.resolveCategory(ctx, tx, upd.CategoryID); err != nil {
				return err
			}
			inv.CategoryID = upd.CategoryID
		}
		if upd.Status != nil {
			inv.Status = *upd.Status
		}
		if upd.Note != nil {
			inv.Note = upd.Note
		}
		if upd.Metadata != nil {
			inv.Metadata = upd.Metadata
		}
		if upd.CapturedAt != nil {
			inv.CapturedAt = *upd.CapturedAt
		}

		updated, err = repo.Update(ctx, inv)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the invoice and, by cascade, its attachment rows. Blobs are
// left in the store.
func (s *InvoiceService) Delete(ctx context.Context, caller *models.User, id string) error {
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Invoices(tx)

		_, target, err := loadInvoiceTarget(ctx, repo, id, policy.ResourceInvoice)
		if err != nil {
			return err
		}
		if err := policy.Check(policy.SubjectOf(caller), policy.ActionDelete, target); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "invoice deleted", "invoice_id", id, "by", caller.ID)
	return nil
}

func (s *InvoiceService) ListAttachments(ctx context.Context, caller *models.User, invoiceID string) ([]*models.Attachment, error) {
	_, target, err := loadInvoiceTarget(ctx, s.repomanager.Invoices(s.db), invoiceID, policy.ResourceAttachment)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.SubjectOf(caller), policy.ActionRead, target); err != nil {
		return nil, err
	}

	atts, err := s.repomanager.Attachments(s.db).ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if atts == nil {
		atts = []*models.Attachment{}
	}
	return atts, nil
}

func (s *InvoiceService) GetAttachment(ctx context.Context, caller *models.User, id string) (*models.Attachment, error) {
	a, _, err := s.loadAttachment(ctx, s.db, caller, id, policy.ActionRead)
	return a, err
}

// OpenAttachment returns the attachment row together with its blob content.
// The caller closes the reader.
func (s *InvoiceService) OpenAttachment(ctx context.Context, caller *models.User, id string) (*models.Attachment, io.ReadCloser, error) {
	a, _, err := s.loadAttachment(ctx, s.db, caller, id, policy.ActionRead)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, a.FilePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: attachment content missing", common.ErrorNotFound)
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrStorageFailure, err)
	}
	return a, rc, nil
}

// DeleteAttachment removes one attachment row and then makes a best-effort
// attempt to delete its blob.
func (s *InvoiceService) DeleteAttachment(ctx context.Context, caller *models.User, id string) error {
	var deleted *models.Attachment

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		a, _, err := s.loadAttachment(ctx, tx, caller, id, policy.ActionDelete)
		if err != nil {
			return err
		}
		if err := s.repomanager.Attachments(tx).Delete(ctx, id); err != nil {
			return err
		}
		deleted = a
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, deleted.FilePath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		s.logger.Warn(ctx, "failed to delete attachment blob", "attachment_id", id, "key", deleted.FilePath, "error", err)
	}
	return nil
}

// DeleteAllAttachments removes every attachment row of the invoice and
// returns how many were removed. Blobs are left in the store.
func (s *InvoiceService) DeleteAllAttachments(ctx context.Context, caller *models.User, invoiceID string) (int64, error) {
	var n int64

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		_, target, err := loadInvoiceTarget(ctx, s.repomanager.Invoices(tx), invoiceID, policy.ResourceAttachment)
		if err != nil {
			return err
		}
		if err := policy.Check(policy.SubjectOf(caller), policy.ActionDelete, target); err != nil {
			return err
		}
		n, err = s.repomanager.Attachments(tx).DeleteByInvoice(ctx, invoiceID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "attachments deleted", "invoice_id", invoiceID, "count", n)
	return n, nil
}

// loadAttachment fetches an attachment and checks action against the owner
// of its invoice.
func (s *InvoiceService) loadAttachment(ctx context.Context, db dbx.DBTX, caller *models.User, id string, action policy.Action) (*models.Attachment, *models.Invoice, error) {
	target := policy.Target{Kind: policy.ResourceAttachment}

	a, err := s.repomanager.Attachments(db).GetByID(ctx, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, nil, err
	}

	var inv *models.Invoice
	if a != nil {
		inv, err = s.repomanager.Invoices(db).GetByID(ctx, a.InvoiceID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, nil, err
		}
		if inv != nil {
			target.OwnerID = inv.UserID
			target.Exists = true
		}
	}

	if err := policy.Check(policy.SubjectOf(caller), action, target); err != nil {
		return nil, nil, err
	}
	return a, inv, nil
}

func (s *InvoiceService) validateUpload(up *AttachmentUpload) error {
	if up == nil {
		return nil
	}
	if up.Body == nil {
		return fmt.Errorf("%w: empty upload", common.ErrValidation)
	}
	if up.Size > s.maxUploadSize {
		return fmt.Errorf("%w: file exceeds %d bytes", common.ErrValidation, s.maxUploadSize)
	}
	if !models.ValidCoordinates(up.Latitude, up.Longitude) {
		return fmt.Errorf("%w: coordinates out of range", common.ErrValidation)
	}
	return nil
}

// resolveLocation returns nil for an omitted reference and ErrValidation for
// one that does not resolve.
func (s *InvoiceService) resolveLocation(ctx context.Context, db dbx.DBTX, id *string) (*models.Location, error) {
	if id == nil {
		return nil, nil
	}
	loc, err := s.repomanager.Locations(db).GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown location %s", common.ErrValidation, *id)
		}
		return nil, err
	}
	return loc, nil
}

func (s *InvoiceService) resolveCategory(ctx context.Context, db dbx.DBTX, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := s.repomanager.Categories(db).GetByID(ctx, *id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: unknown category %d", common.ErrValidation, *id)
		}
		return err
	}
	return nil
}

// loadInvoiceTarget fetches the invoice and describes it for the policy as
// kind. A missing invoice is left for the policy to report.
func loadInvoiceTarget(ctx context.Context, repo invoices.Repository, id string, kind policy.Resource) (*models.Invoice, policy.Target, error) {
	target := policy.Target{Kind: kind}

	inv, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, target, nil
		}
		return nil, target, err
	}

	target.OwnerID = inv.UserID
	target.Exists = true
	return inv, target, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
