package access_test

import (
	"errors"
	"testing"

	"github.com/serroba/line-docs/internal/access"
	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestRole_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role     access.Role
		expected string
	}{
		{access.None, "none"},
		{access.Collaborator, "collaborator"},
		{access.Owner, "owner"},
		{access.Role(99), "unknown"},
	}

	for _, tt := range tests {
		if tt.role.String() != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, tt.role.String())
		}
	}
}

func TestRoleOf(t *testing.T) {
	t.Parallel()

	doc := document.New("doc1", "T", "owner", "")
	doc.AddCollaborator("alice")

	tests := []struct {
		userID   string
		expected access.Role
	}{
		{"owner", access.Owner},
		{"alice", access.Collaborator},
		{"stranger", access.None},
		{"", access.None},
	}

	for _, tt := range tests {
		if got := access.RoleOf(doc, tt.userID); got != tt.expected {
			t.Errorf("RoleOf(%q): expected %v, got %v", tt.userID, tt.expected, got)
		}
	}
}

func TestChecker_RequireAccess(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	doc := document.New("doc1", "T", "owner", "")
	doc.AddCollaborator("alice")
	require.NoError(t, store.CreateDocument(doc))

	checker := access.NewChecker(store)

	require.NoError(t, checker.RequireAccess("doc1", "owner"))
	require.NoError(t, checker.RequireAccess("doc1", "alice"))

	if err := checker.RequireAccess("doc1", "stranger"); !errors.Is(err, access.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}

	if err := checker.RequireAccess("missing", "owner"); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestChecker_RequireOwner(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	doc := document.New("doc1", "T", "owner", "")
	doc.AddCollaborator("alice")
	require.NoError(t, store.CreateDocument(doc))

	checker := access.NewChecker(store)

	require.NoError(t, checker.RequireOwner("doc1", "owner"))

	if err := checker.RequireOwner("doc1", "alice"); !errors.Is(err, access.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for collaborator, got %v", err)
	}
}

func TestRole_Capabilities(t *testing.T) {
	t.Parallel()

	if access.None.CanEdit() || access.None.CanShare() || access.None.CanDelete() {
		t.Error("None must have no capabilities")
	}

	if !access.Collaborator.CanEdit() || access.Collaborator.CanShare() || access.Collaborator.CanDelete() {
		t.Error("Collaborator must edit only")
	}

	if !access.Owner.CanEdit() || !access.Owner.CanShare() || !access.Owner.CanDelete() {
		t.Error("Owner must have all capabilities")
	}
}
