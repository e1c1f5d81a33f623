package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/logging"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
	"github.com/dmitrijs2005/snaptrack/internal/server/policy"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/repomanager"
)

// ReferenceService serves the shared location and category catalogues.
// Reading needs any authenticated caller; writing needs an admin.
type ReferenceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewReferenceService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *ReferenceService {
	return &ReferenceService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "reference"),
	}
}

func (s *ReferenceService) ListLocations(ctx context.Context, caller *models.User, offset, limit int) ([]*models.Location, error) {
	if err := checkCatalogue(caller, policy.ActionRead, policy.ResourceLocation); err != nil {
		return nil, err
	}
	if err := checkPage(offset, limit); err != nil {
		return nil, err
	}
	return s.repomanager.Locations(s.db).List(ctx, offset, limit)
}

func (s *ReferenceService) GetLocation(ctx context.Context, caller *models.User, id string) (*models.Location, error) {
	if err := checkCatalogue(caller, policy.ActionRead, policy.ResourceLocation); err != nil {
		return nil, err
	}
	return s.repomanager.Locations(s.db).GetByID(ctx, id)
}

func (s *ReferenceService) CreateLocation(ctx context.Context, caller *models.User, l *models.Location) (*models.Location, error) {
	if err := checkCatalogue(caller, policy.ActionCreate, policy.ResourceLocation); err != nil {
		return nil, err
	}
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if !models.ValidCoordinates(l.GPSLatitude, l.GPSLongitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", common.ErrValidation)
	}

	var created *models.Location
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Locations(tx).Create(ctx, l)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating location: %w", err)
	}

	s.logger.Info(ctx, "location created", "location_id", created.ID)
	return created, nil
}

func (s *ReferenceService) ListCategories(ctx context.Context, caller *models.User, activeOnly bool, offset, limit int) ([]*models.Category, error) {
	if err := checkCatalogue(caller, policy.ActionRead, policy.ResourceCategory); err != nil {
		return nil, err
	}
	if err := checkPage(offset, limit); err != nil {
		return nil, err
	}
	return s.repomanager.Categories(s.db).List(ctx, activeOnly, offset, limit)
}

func (s *ReferenceService) GetCategory(ctx context.Context, caller *models.User, id int64) (*models.Category, error) {
	if err := checkCatalogue(caller, policy.ActionRead, policy.ResourceCategory); err != nil {
		return nil, err
	}
	return s.repomanager.Categories(s.db).GetByID(ctx, id)
}

func (s *ReferenceService) CreateCategory(ctx context.Context, caller *models.User, c *models.Category) (*models.Category, error) {
	if err := checkCatalogue(caller, policy.ActionCreate, policy.ResourceCategory); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}

	var created *models.Category
	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		created, err = s.repomanager.Categories(tx).Create(ctx, c)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating category: %w", err)
	}

	s.logger.Info(ctx, "category created", "category_id", created.ID)
	return created, nil
}

// checkCatalogue applies the policy to a catalogue as a whole. Individual
// lookups report NotFound from the repository.
func checkCatalogue(caller *models.User, action policy.Action, kind policy.Resource) error {
	return policy.Check(policy.SubjectOf(caller), action, policy.Target{Kind: kind, Exists: true})
}

func checkPage(offset, limit int) error {
	if offset < 0 || limit < 0 {
		return fmt.Errorf("%w: negative pagination", common.ErrValidation)
	}
	return nil
}
