// Package httpapi exposes the snaptrack services over a JSON HTTP API built
// on gin. Routes live under /api/v1; /health sits at the root.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Sessions authenticates callers and issues token pairs.
type Sessions interface {
	Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ResolveCaller(ctx context.Context, accessToken string) (*models.User, error)
}

type Users interface {
	Register(ctx context.Context, in services.NewUser) (*models.User, error)
	Get(ctx context.Context, caller *models.User, id string) (*models.User, error)
	List(ctx context.Context, caller *models.User, offset, limit int) ([]*models.User, error)
	UpdateSelf(ctx context.Context, caller *models.User, upd services.UserUpdate) (*models.User, error)
	Update(ctx context.Context, caller *models.User, id string, upd services.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, caller *models.User, id string) error
}

type Invoices interface {
	Create(ctx context.Context, caller *models.User, in services.CreateInvoiceInput, upload *services.AttachmentUpload) (*models.Invoice, error)
	Get(ctx context.Context, caller *models.User, id string, withAttachments bool) (*models.Invoice, error)
	List(ctx context.Context, caller *models.User, filter models.InvoiceFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, caller *models.User, id string, upd services.InvoiceUpdate) (*models.Invoice, error)
	Delete(ctx context.Context, caller *models.User, id string) error

	UploadAttachment(ctx context.Context, caller *models.User, invoiceID string, upload *services.AttachmentUpload) (*models.Attachment, error)
	ListAttachments(ctx context.Context, caller *models.User, invoiceID string) ([]*models.Attachment, error)
	GetAttachment(ctx context.Context, caller *models.User, id string) (*models.Attachment, error)
	OpenAttachment(ctx context.Context, caller *models.User, id string) (*models.Attachment, io.ReadCloser, error)
	DeleteAttachment(ctx context.Context, caller *models.User, id string) error
	DeleteAllAttachments(ctx context.Context, caller *models.User, invoiceID string) (int64, error)
}

type Catalogue interface {
	ListLocations(ctx context.Context, caller *models.User, offset, limit int) ([]*models.Location, error)
	GetLocation(ctx context.Context, caller *models.User, id string) (*models.Location, error)
	CreateLocation(ctx context.Context, caller *models.User, l *models.Location) (*models.Location, error)
	ListCategories(ctx context.Context, caller *models.User, activeOnly bool, offset, limit int) ([]*models.Category, error)
	GetCategory(ctx context.Context, caller *models.User, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, caller *models.User, c *models.Category) (*models.Category, error)
}

// Deps groups the services the API dispatches to.
type Deps struct {
	Sessions  Sessions
	Users     Users
	Invoices  Invoices
	Catalogue Catalogue
}

type Server struct {
	address       string
	deps          Deps
	maxUploadSize int64
	logger        logging.Logger
	engine        *gin.Engine
}

func NewServer(address string, deps Deps, maxUploadSize int64, l logging.Logger) *Server {
	s := &Server{
		address:       address,
		deps:          deps,
		maxUploadSize: maxUploadSize,
		logger:        l.With("module", "http_server"),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", s.login)
	v1.POST("/auth/refresh", s.refresh)
	v1.POST("/users", s.register)

	authed := v1.Group("", s.authenticate)

	authed.GET("/auth/me", s.me)
	authed.PUT("/auth/me", s.updateMe)

	authed.GET("/users", s.listUsers)
	authed.GET("/users/:id", s.getUser)
	authed.PUT("/users/:id", s.updateUser)
	authed.DELETE("/users/:id", s.deleteUser)

	authed.GET("/locations", s.listLocations)
	authed.POST("/locations", s.createLocation)
	authed.GET("/locations/:id", s.getLocation)
	authed.GET("/categories", s.listCategories)
	authed.POST("/categories", s.createCategory)
	authed.GET("/categories/:id", s.getCategory)

	authed.POST("/invoices", s.createInvoice)
	authed.GET("/invoices", s.listInvoices)
	authed.GET("/invoices/:id", s.getInvoice)
	authed.PUT("/invoices/:id", s.updateInvoice)
	authed.DELETE("/invoices/:id", s.deleteInvoice)

	authed.POST("/invoices/:id/attachments", s.uploadAttachment)
	authed.GET("/invoices/:id/attachments", s.listAttachments)
	authed.DELETE("/invoices/:id/attachments", s.deleteAllAttachments)

	authed.GET("/attachments/:id", s.getAttachment)
	authed.GET("/attachments/:id/content", s.attachmentContent)
	authed.DELETE("/attachments/:id", s.deleteAttachment)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
