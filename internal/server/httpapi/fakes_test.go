package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	alice = &models.User{ID: "u-alice", UserName: "alice", Email: "alice@example.com", Role: models.RoleStaff, IsActive: true}
	admin = &models.User{ID: "u-admin", UserName: "admin", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
)

type fakeSessions struct {
	Sessions
	callers  map[string]*models.User
	resolve  error
	loginErr error
}

func (f *fakeSessions) Login(ctx context.Context, userName, password string) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if userName != "alice" || password != "correct-pw" {
		return nil, common.ErrAuthenticationFailed
	}
	return &services.TokenPair{AccessToken: "access-alice", RefreshToken: "refresh-alice", TokenType: common.TokenType}, nil
}

func (f *fakeSessions) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if refreshToken != "refresh-alice" {
		return nil, common.ErrTokenKindMismatch
	}
	return &services.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: common.TokenType}, nil
}

func (f *fakeSessions) ResolveCaller(ctx context.Context, accessToken string) (*models.User, error) {
	if f.resolve != nil {
		return nil, f.resolve
	}
	u, ok := f.callers[accessToken]
	if !ok {
		return nil, common.ErrInvalidSignature
	}
	return u, nil
}

type fakeUsers struct {
	Users
	registered []services.NewUser
	err        error
	lastUpdate services.UserUpdate
}

func (f *fakeUsers) Register(ctx context.Context, in services.NewUser) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.registered = append(f.registered, in)
	return &models.User{ID: "u-new", UserName: in.UserName, Email: in.Email, Role: models.RoleStaff, IsActive: true}, nil
}

func (f *fakeUsers) List(ctx context.Context, caller *models.User, offset, limit int) ([]*models.User, error) {
	return []*models.User{alice, admin}, nil
}

func (f *fakeUsers) UpdateSelf(ctx context.Context, caller *models.User, upd services.UserUpdate) (*models.User, error) {
	f.lastUpdate = upd
	if f.err != nil {
		return nil, f.err
	}
	cp := *caller
	if upd.FullName != nil {
		cp.FullName = upd.FullName
	}
	return &cp, nil
}

func (f *fakeUsers) Delete(ctx context.Context, caller *models.User, id string) error {
	return f.err
}

type fakeInvoices struct {
	Invoices

	createIn     services.CreateInvoiceInput
	upload       *services.AttachmentUpload
	uploadedBody []byte
	createErr    error

	filter models.InvoiceFilter

	withAttachments bool
	getErr          error

	content []byte
}

func (f *fakeInvoices) Create(ctx context.Context, caller *models.User, in services.CreateInvoiceInput, upload *services.AttachmentUpload) (*models.Invoice, error) {
	f.createIn = in
	f.upload = upload
	if f.createErr != nil {
		return nil, f.createErr
	}

	inv := &models.Invoice{ID: "inv-1", UserID: caller.ID, LocationID: in.LocationID, CategoryID: in.CategoryID,
		Status: in.Status, Metadata: in.Metadata, CapturedAt: time.Now(), Attachments: []*models.Attachment{}}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusDraft
	}
	if upload != nil {
		b, err := io.ReadAll(upload.Body)
		if err != nil {
			return nil, err
		}
		f.uploadedBody = b
		inv.Attachments = append(inv.Attachments, &models.Attachment{
			ID: "att-1", InvoiceID: inv.ID, FileName: upload.FileName, FileSize: int64(len(b)), MimeType: upload.ContentType,
		})
	}
	return inv, nil
}

func (f *fakeInvoices) UploadAttachment(ctx context.Context, caller *models.User, invoiceID string, upload *services.AttachmentUpload) (*models.Attachment, error) {
	f.upload = upload
	b, err := io.ReadAll(upload.Body)
	if err != nil {
		return nil, err
	}
	f.uploadedBody = b
	return &models.Attachment{ID: "att-2", InvoiceID: invoiceID, FileName: upload.FileName, FileSize: int64(len(b)),
		MimeType: upload.ContentType, GPSLatitude: upload.Latitude, GPSLongitude: upload.Longitude}, nil
}

func (f *fakeInvoices) Get(ctx context.Context, caller *models.User, id string, withAttachments bool) (*models.Invoice, error) {
	f.withAttachments = withAttachments
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv := &models.Invoice{ID: id, UserID: alice.ID, Status: models.InvoiceStatusDraft}
	if withAttachments {
		inv.Attachments = []*models.Attachment{}
	}
	return inv, nil
}

func (f *fakeInvoices) List(ctx context.Context, caller *models.User, filter models.InvoiceFilter) ([]*models.Invoice, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeInvoices) DeleteAllAttachments(ctx context.Context, caller *models.User, invoiceID string) (int64, error) {
	return 3, nil
}

func (f *fakeInvoices) OpenAttachment(ctx context.Context, caller *models.User, id string) (*models.Attachment, io.ReadCloser, error) {
	if f.content == nil {
		return nil, nil, common.ErrorNotFound
	}
	a := &models.Attachment{ID: id, FileName: "r.png", FileSize: int64(len(f.content)), MimeType: "image/png"}
	return a, io.NopCloser(bytes.NewReader(f.content)), nil
}

type fakeCatalogue struct {
	Catalogue
	offset, limit int
	activeOnly    bool
}

func (f *fakeCatalogue) ListLocations(ctx context.Context, caller *models.User, offset, limit int) ([]*models.Location, error) {
	f.offset, f.limit = offset, limit
	return []*models.Location{{ID: "loc-1", Name: "Depot"}}, nil
}

func (f *fakeCatalogue) ListCategories(ctx context.Context, caller *models.User, activeOnly bool, offset, limit int) ([]*models.Category, error) {
	f.activeOnly, f.offset, f.limit = activeOnly, offset, limit
	return []*models.Category{{ID: 1, Name: "Receipt", IsActive: true}}, nil
}

func (f *fakeCatalogue) GetCategory(ctx context.Context, caller *models.User, id int64) (*models.Category, error) {
	if id != 1 {
		return nil, common.ErrorNotFound
	}
	return &models.Category{ID: 1, Name: "Receipt", IsActive: true}, nil
}

func (f *fakeCatalogue) CreateLocation(ctx context.Context, caller *models.User, l *models.Location) (*models.Location, error) {
	if !caller.IsAdmin() {
		return nil, common.ErrForbidden
	}
	l.ID = "loc-1"
	return l, nil
}

type harness struct {
	srv       *Server
	sessions  *fakeSessions
	users     *fakeUsers
	invoices  *fakeInvoices
	catalogue *fakeCatalogue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sessions: &fakeSessions{callers: map[string]*models.User{
			"access-alice": alice,
			"access-admin": admin,
		}},
		users:     &fakeUsers{},
		invoices:  &fakeInvoices{},
		catalogue: &fakeCatalogue{},
	}
	h.srv = NewServer("127.0.0.1:0", Deps{
		Sessions:  h.sessions,
		Users:     h.users,
		Invoices:  h.invoices,
		Catalogue: h.catalogue,
	}, 1<<20, logging.Nop{})
	return h
}

// do sends req with token as the bearer credential (none when empty).
func (h *harness) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
