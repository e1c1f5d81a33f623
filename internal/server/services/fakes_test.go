package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/auth"
	"github.com/dmitrijs2005/snaptrack/internal/server/blobstore"
	"github.com/dmitrijs2005/snaptrack/internal/server/config"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/categories"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/invoices"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/locations"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// expectTx registers n committed transactions.
func expectTx(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  30 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
		MaxUploadSize:                1 << 20,
	}
}

func testVerifier() auth.CredentialVerifier {
	return auth.NewBcryptVerifier(4)
}

func ptr[T any](v T) *T { return &v }

// --- in-memory store shared by the fake repositories ---

type memDB struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*models.User
	invoices    map[string]*models.Invoice
	attachments map[string]*models.Attachment
	locations   map[string]*models.Location
	categories  map[int64]*models.Category

	lastLoginErr  error
	invoiceErr    error
	attachmentErr error
}

func newMemDB() *memDB {
	return &memDB{
		users:       map[string]*models.User{},
		invoices:    map[string]*models.Invoice{},
		attachments: map[string]*models.Attachment{},
		locations:   map[string]*models.Location{},
		categories:  map[int64]*models.Category{},
	}
}

func (m *memDB) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memDB) addUser(t *testing.T, name string, role models.Role, active bool, password string) *models.User {
	t.Helper()
	hash, err := testVerifier().Hash(password)
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{
		ID:           m.nextID("u"),
		UserName:     name,
		Email:        name + "@example.com",
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp
}

func (m *memDB) addLocation(l *models.Location) *models.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = m.nextID("loc")
	}
	m.locations[l.ID] = l
	return l
}

func (m *memDB) addCategory(c *models.Category) *models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return c
}

func (m *memDB) addInvoice(ownerID string) *models.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := &models.Invoice{ID: m.nextID("inv"), UserID: ownerID, Status: models.InvoiceStatusDraft, Metadata: map[string]any{}, CapturedAt: time.Now()}
	m.invoices[inv.ID] = inv
	cp := *inv
	return &cp
}

func (m *memDB) addAttachment(invoiceID, key string) *models.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.Attachment{ID: m.nextID("att"), InvoiceID: invoiceID, FilePath: key, FileName: "f.jpg", MimeType: "image/jpeg", CreatedAt: time.Now()}
	m.attachments[a.ID] = a
	cp := *a
	return &cp
}

func (m *memDB) attachmentsOf(invoiceID string) []*models.Attachment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Attachment
	for _, a := range m.attachments {
		if a.InvoiceID == invoiceID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memUsers struct {
	users.Repository
	db *memDB
}

func (r *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.UserName == u.UserName || existing.Email == u.Email {
			return nil, fmt.Errorf("db error: %w: users_username_key", common.ErrAlreadyExists)
		}
	}
	u.ID = r.db.nextID("u")
	u.CreatedAt = time.Now()
	cp := *u
	r.db.users[u.ID] = &cp
	return u, nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByUserName(ctx context.Context, name string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.UserName == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.User
	for _, u := range r.db.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return page(out, offset, limit), nil
}

func (r *memUsers) Update(ctx context.Context, u *models.User) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	now := time.Now()
	u.UpdatedAt = &now
	cp := *u
	r.db.users[u.ID] = &cp
	return u, nil
}

func (r *memUsers) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.lastLoginErr != nil {
		return r.db.lastLoginErr
	}
	if u, ok := r.db.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (r *memUsers) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.db.users, id)
	return nil
}

type memInvoices struct {
	invoices.Repository
	db *memDB
}

func (r *memInvoices) Create(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.invoiceErr != nil {
		return nil, r.db.invoiceErr
	}
	inv.ID = r.db.nextID("inv")
	if inv.CapturedAt.IsZero() {
		inv.CapturedAt = time.Now()
	}
	if inv.Metadata == nil {
		inv.Metadata = map[string]any{}
	}
	inv.CreatedAt = time.Now()
	cp := *inv
	r.db.invoices[inv.ID] = &cp
	return inv, nil
}

func (r *memInvoices) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	inv, ok := r.db.invoices[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoices) List(ctx context.Context, f models.InvoiceFilter) ([]*models.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Invoice
	for _, inv := range r.db.invoices {
		if f.UserID != "" && inv.UserID != f.UserID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memInvoices) Update(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.invoices[inv.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	now := time.Now()
	inv.UpdatedAt = &now
	cp := *inv
	r.db.invoices[inv.ID] = &cp
	return inv, nil
}

func (r *memInvoices) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.invoices[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.db.invoices, id)
	for k, a := range r.db.attachments {
		if a.InvoiceID == id {
			delete(r.db.attachments, k)
		}
	}
	return nil
}

type memAttachments struct {
	attachments.Repository
	db *memDB
}

func (r *memAttachments) Create(ctx context.Context, a *models.Attachment) (*models.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.attachmentErr != nil {
		return nil, r.db.attachmentErr
	}
	if _, ok := r.db.invoices[a.InvoiceID]; !ok {
		return nil, common.ErrValidation
	}
	a.ID = r.db.nextID("att")
	a.CreatedAt = time.Now()
	cp := *a
	r.db.attachments[a.ID] = &cp
	return a, nil
}

func (r *memAttachments) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.attachments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAttachments) ListByInvoice(ctx context.Context, invoiceID string) ([]*models.Attachment, error) {
	return r.db.attachmentsOf(invoiceID), nil
}

func (r *memAttachments) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.attachments[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.db.attachments, id)
	return nil
}

func (r *memAttachments) DeleteByInvoice(ctx context.Context, invoiceID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for k, a := range r.db.attachments {
		if a.InvoiceID == invoiceID {
			delete(r.db.attachments, k)
			n++
		}
	}
	return n, nil
}

type memLocations struct {
	locations.Repository
	db *memDB
}

func (r *memLocations) Create(ctx context.Context, l *models.Location) (*models.Location, error) {
	return r.db.addLocation(l), nil
}

func (r *memLocations) GetByID(ctx context.Context, id string) (*models.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.locations[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memLocations) List(ctx context.Context, offset, limit int) ([]*models.Location, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Location
	for _, l := range r.db.locations {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, offset, limit), nil
}

type memCategories struct {
	categories.Repository
	db *memDB
}

func (r *memCategories) Create(ctx context.Context, c *models.Category) (*models.Category, error) {
	r.db.mu.Lock()
	c.ID = int64(len(r.db.categories) + 1)
	r.db.mu.Unlock()
	return r.db.addCategory(c), nil
}

func (r *memCategories) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.categories[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCategories) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*models.Category, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Category
	for _, c := range r.db.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, offset, limit), nil
}

// page mirrors OFFSET/LIMIT with the repositories' default limit of 100.
func page[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = 100
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

type fakeRepoManager struct {
	mem *memDB
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return &memUsers{db: m.mem} }
func (m *fakeRepoManager) Invoices(dbx.DBTX) invoices.Repository        { return &memInvoices{db: m.mem} }
func (m *fakeRepoManager) Attachments(dbx.DBTX) attachments.Repository {
	return &memAttachments{db: m.mem}
}
func (m *fakeRepoManager) Locations(dbx.DBTX) locations.Repository { return &memLocations{db: m.mem} }
func (m *fakeRepoManager) Categories(dbx.DBTX) categories.Repository {
	return &memCategories{db: m.mem}
}

// --- blob store ---

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	puts      int
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = b
	f.types[key] = contentType
	return nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

var nopLogger logging.Logger = logging.Nop{}
