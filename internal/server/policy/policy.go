// Package policy is the single place where role and ownership rules live.
// Decide is pure: callers load whatever they need first and pass it in.
package policy

import (
	"github.com/dmitrijs2005/snaptrack/internal/common"
	"github.com/dmitrijs2005/snaptrack/internal/server/models"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// ActionRename changes a user's username.
	ActionRename Action = "rename"
	// ActionGrant changes a user's role or active flag.
	ActionGrant Action = "grant"
	// ActionAttach adds an attachment to an invoice.
	ActionAttach Action = "attach"
)

type Resource string

const (
	ResourceUser       Resource = "user"
	ResourceInvoice    Resource = "invoice"
	ResourceAttachment Resource = "attachment"
	ResourceLocation   Resource = "location"
	ResourceCategory   Resource = "category"
)

// Subject is the authenticated caller.
type Subject struct {
	ID   string
	Role models.Role
}

func SubjectOf(u *models.User) Subject {
	if u == nil {
		return Subject{}
	}
	return Subject{ID: u.ID, Role: u.Role}
}

func (s Subject) isAdmin() bool { return s.Role == models.RoleAdmin }

// Target is the resource an action applies to. OwnerID is the owning identity:
// the user itself for ResourceUser, the invoice owner for invoices and their
// attachments, empty for reference data.
type Target struct {
	Kind    Resource
	OwnerID string
	Exists  bool
}

type Decision int

const (
	Allow Decision = iota
	DenyNotFound
	DenyForbidden
)

func (d Decision) Allowed() bool { return d == Allow }

// Err maps the decision onto the shared error taxonomy.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyNotFound:
		return common.ErrorNotFound
	default:
		return common.ErrForbidden
	}
}

// Decide evaluates the rules for caller performing action on target.
// Existence is checked before permission, so a missing resource is always
// reported as not found.
func Decide(caller Subject, action Action, target Target) Decision {
	if caller.ID == "" {
		return DenyForbidden
	}

	if action != ActionCreate && !target.Exists {
		return DenyNotFound
	}

	switch target.Kind {
	case ResourceUser:
		return decideUser(caller, action, target)
	case ResourceInvoice, ResourceAttachment:
		return decideOwned(caller, action, target)
	case ResourceLocation, ResourceCategory:
		return decideReference(caller, action)
	default:
		return DenyForbidden
	}
}

// Check is Decide(...).Err().
func Check(caller Subject, action Action, target Target) error {
	return Decide(caller, action, target).Err()
}

func decideUser(caller Subject, action Action, target Target) Decision {
	if caller.isAdmin() {
		return Allow
	}

	self := caller.ID == target.OwnerID

	switch action {
	case ActionRead:
		return Allow
	case ActionUpdate:
		if self {
			return Allow
		}
	}
	// Creating, deleting, renaming and granting are admin-only, and so is
	// touching anybody else's record.
	return DenyForbidden
}

func decideOwned(caller Subject, action Action, target Target) Decision {
	switch action {
	case ActionRead, ActionCreate:
		return Allow
	case ActionUpdate, ActionDelete, ActionAttach:
		if caller.isAdmin() || caller.ID == target.OwnerID {
			return Allow
		}
	}
	return DenyForbidden
}

func decideReference(caller Subject, action Action) Decision {
	if action == ActionRead || caller.isAdmin() {
		return Allow
	}
	return DenyForbidden
}
