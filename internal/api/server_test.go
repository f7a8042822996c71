package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/serroba/line-docs/internal/api"
	"github.com/serroba/line-docs/internal/auth"
	"github.com/serroba/line-docs/internal/collab"
	"github.com/serroba/line-docs/internal/document"
	"github.com/serroba/line-docs/internal/storage"
	"github.com/serroba/line-docs/internal/ws"
)

const testSecret = "test-secret"

// recordingSink captures notifications for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Notify(userID, docID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, userID+":"+docID)
}

func (r *recordingSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	copy(out, r.events)

	return out
}

type apiFixture struct {
	handler  http.Handler
	store    *storage.MemoryStore
	verifier *auth.HMACVerifier
	notifier *recordingSink
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := storage.NewMemoryStore()
	hub := ws.NewHub()
	verifier := auth.NewHMACVerifier([]byte(testSecret))
	notifier := &recordingSink{}

	manager := collab.NewManager(collab.ManagerConfig{Store: store, Hub: hub})

	server := api.NewServer(api.ServerConfig{
		Manager:  manager,
		Store:    store,
		Hub:      hub,
		Verifier: verifier,
		Notifier: notifier,
	})

	return &apiFixture{
		handler:  server.Handler(),
		store:    store,
		verifier: verifier,
		notifier: notifier,
	}
}

func (f *apiFixture) token(t *testing.T, userID, userName string) string {
	t.Helper()

	token, err := f.verifier.IssueToken(auth.Identity{UserID: userID, UserName: userName}, time.Hour)
	require.NoError(t, err)

	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func (f *apiFixture) seedDocument(t *testing.T, collaborators ...string) string {
	t.Helper()

	doc := document.New("doc1", "Notes", "alice", "line one\nline two\nline three")
	for _, c := range collaborators {
		doc.AddCollaborator(c)
	}

	require.NoError(t, f.store.CreateDocument(doc))

	return doc.ID
}

func TestRESTRequiresAuthentication(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/documents", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/documents", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndGetDocument(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	token := f.token(t, "alice", "Alice")

	rec := f.do(t, http.MethodPost, "/documents", token, api.CreateDocumentRequest{Title: "Notes", Content: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created document.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "alice", created.Owner)
	require.Equal(t, 1, created.Version)
	require.Len(t, created.Versions, 1)

	rec = f.do(t, http.MethodGet, "/documents/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A stranger is refused.
	rec = f.do(t, http.MethodGet, "/documents/"+created.ID, f.token(t, "mallory", "Mallory"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateDocument_TitleRequired(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/documents", f.token(t, "alice", "Alice"), api.CreateDocumentRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDocuments_ScopedToCaller(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	f.seedDocument(t, "bob")

	var docs []document.Document

	rec := f.do(t, http.MethodGet, "/documents", f.token(t, "bob", "Bob"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)

	rec = f.do(t, http.MethodGet, "/documents", f.token(t, "mallory", "Mallory"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Empty(t, docs)
}

func TestUpdateDocument_RejectedByForeignLock(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t, "bob")

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/lock", f.token(t, "bob", "Bob"), api.LineRequest{LineNumber: 5})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPut, "/documents/"+docID, f.token(t, "alice", "Alice"), api.UpdateDocumentRequest{
		Content:      "rewritten",
		ChangedLines: []int{2, 5},
	})
	require.Equal(t, http.StatusLocked, rec.Code)

	// Nothing was persisted.
	doc, err := f.store.LoadDocument(docID)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\nline three", doc.Content)
}

func TestUpdateDocument_Succeeds(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t)

	rec := f.do(t, http.MethodPut, "/documents/"+docID, f.token(t, "alice", "Alice"), api.UpdateDocumentRequest{
		Title:        "Renamed",
		Content:      "new body",
		ChangedLines: []int{1},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := f.store.LoadDocument(docID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", doc.Title)
	require.Equal(t, "new body", doc.Content)
	require.Equal(t, "alice", doc.LineEditor(1))
}

func TestDeleteDocument_OwnerOnly(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t, "bob")

	rec := f.do(t, http.MethodDelete, "/documents/"+docID, f.token(t, "bob", "Bob"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/documents/"+docID, f.token(t, "alice", "Alice"), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/documents/"+docID, f.token(t, "alice", "Alice"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddCollaborator_NotifiesAndGrantsAccess(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t)

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/collaborators", f.token(t, "alice", "Alice"),
		api.AddCollaboratorRequest{UserID: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"bob:" + docID}, f.notifier.snapshot())

	rec = f.do(t, http.MethodGet, "/documents/"+docID, f.token(t, "bob", "Bob"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Non-owners cannot share.
	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/collaborators", f.token(t, "bob", "Bob"),
		api.AddCollaboratorRequest{UserID: "carol"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLockEndpoints(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t, "bob")
	alice := f.token(t, "alice", "Alice")
	bob := f.token(t, "bob", "Bob")

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/lock", alice, api.LineRequest{LineNumber: 2})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Any existing lock blocks another manual lock, even reentry by the
	// holder.
	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/lock", alice, api.LineRequest{LineNumber: 2})
	require.Equal(t, http.StatusLocked, rec.Code)

	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/lock", bob, api.LineRequest{LineNumber: 2})
	require.Equal(t, http.StatusLocked, rec.Code)

	var locks api.LockedLinesResponse

	rec = f.do(t, http.MethodGet, "/documents/"+docID+"/locked-lines", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locks))
	require.Len(t, locks.LockedLines, 1)
	require.Equal(t, "alice", locks.LockedLines[0].LockedBy)

	// A non-holder collaborator cannot unlock; the holder can.
	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/unlock", bob, api.LineRequest{LineNumber: 2})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/unlock", alice, api.LineRequest{LineNumber: 2})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUnlockEndpoint_OwnerOverride(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t, "bob")

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/lock", f.token(t, "bob", "Bob"), api.LineRequest{LineNumber: 3})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/unlock", f.token(t, "alice", "Alice"), api.LineRequest{LineNumber: 3})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVersionEndpoints(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t)
	alice := f.token(t, "alice", "Alice")

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/versions", alice, api.CreateVersionRequest{
		Content:     "line one\nline 2\nline three",
		Description: "tweak line two",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.CreateVersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, 2, created.Version.VersionNumber)
	require.NotEmpty(t, created.Summary)

	var versions []document.Version

	rec = f.do(t, http.MethodGet, "/documents/"+docID+"/versions", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 2)

	rec = f.do(t, http.MethodGet, "/documents/"+docID+"/versions/2", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/documents/"+docID+"/versions/99", alice, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/documents/"+docID+"/versions/1/restore", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var restored api.RestoreVersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restored))
	require.Equal(t, "line one\nline two\nline three", restored.Content)

	// Restoring does not append a version.
	rec = f.do(t, http.MethodGet, "/documents/"+docID+"/versions", alice, nil)
	versions = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 2)
}

func TestRestoreVersion_NotFound(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	docID := f.seedDocument(t)

	rec := f.do(t, http.MethodPost, "/documents/"+docID+"/versions/42/restore", f.token(t, "alice", "Alice"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
