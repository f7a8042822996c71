package access

import (
	"errors"

	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
)

// ErrAccessDenied is returned when a user lacks the required role.
var ErrAccessDenied = errors.New("access denied")

// Role represents a user's relationship to a document. Membership lives on
// the document record itself (owner plus collaborator set), not in a
// separate grant table.
type Role int

const (
	// None has no access to the document.
	None Role = iota
	// Collaborator can read, edit, lock lines, and manage versions.
	Collaborator
	// Owner additionally shares, deletes, and force-unlocks any line.
	Owner
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case None:
		return "none"
	case Collaborator:
		return "collaborator"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// CanEdit returns true if the role allows editing, locking, and version
// operations.
func (r Role) CanEdit() bool {
	return r >= Collaborator
}

// CanShare returns true if the role allows adding collaborators.
func (r Role) CanShare() bool {
	return r >= Owner
}

// CanDelete returns true if the role allows deleting the document.
func (r Role) CanDelete() bool {
	return r >= Owner
}

// RoleOf derives userID's role from the document record.
func RoleOf(doc *document.Document, userID string) Role {
	switch {
	case userID == "":
		return None
	case userID == doc.Owner:
		return Owner
	case doc.HasAccess(userID):
		return Collaborator
	default:
		return None
	}
}

// Checker validates user permissions for document operations.
type Checker struct {
	store storage.Store
}

// NewChecker creates a new permission checker.
func NewChecker(store storage.Store) *Checker {
	return &Checker{store: store}
}

// RoleFor loads the document and derives the user's role.
func (c *Checker) RoleFor(docID, userID string) (Role, error) {
	doc, err := c.store.LoadDocument(docID)
	if err != nil {
		return None, err
	}

	return RoleOf(doc, userID), nil
}

// RequireAccess returns ErrAccessDenied unless the user is the owner or a
// collaborator.
func (c *Checker) RequireAccess(docID, userID string) error {
	role, err := c.RoleFor(docID, userID)
	if err != nil {
		return err
	}

	if !role.CanEdit() {
		return ErrAccessDenied
	}

	return nil
}

// RequireOwner returns ErrAccessDenied unless the user owns the document.
func (c *Checker) RequireOwner(docID, userID string) error {
	role, err := c.RoleFor(docID, userID)
	if err != nil {
		return err
	}

	if role != Owner {
		return ErrAccessDenied
	}

	return nil
}
