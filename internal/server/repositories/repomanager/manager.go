package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/snaptrack/internal/dbx"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/categories"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/invoices"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/locations"
	"github.com/dmitrijs2005/snaptrack/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either the pool or an
// open transaction, so services decide the transactional scope.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Invoices(db dbx.DBTX) invoices.Repository
	Attachments(db dbx.DBTX) attachments.Repository
	Locations(db dbx.DBTX) locations.Repository
	Categories(db dbx.DBTX) categories.Repository
}
