package collab_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/serroba/line-docs/internal/collab"
	"github.com/serroba/line-docs/internal/ws"
)

type lockAttempt struct {
	docID string
	line  int
}

type attemptRecorder struct {
	mu       sync.Mutex
	attempts []lockAttempt
}

func (r *attemptRecorder) record(docID string, _ *ws.Client, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = append(r.attempts, lockAttempt{docID: docID, line: line})
}

func (r *attemptRecorder) snapshot() []lockAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]lockAttempt, len(r.attempts))
	copy(out, r.attempts)

	return out
}

func waitForAttempts(t *testing.T, r *attemptRecorder, n int) []lockAttempt {
	t.Helper()

	deadline := time.Now().Add(time.Second)

	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}

		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d lock attempts, got %d", n, len(r.snapshot()))

	return nil
}

func TestAutoLocker_OneAttemptPerDistinctLine(t *testing.T) {
	t.Parallel()

	rec := &attemptRecorder{}
	locker := collab.NewAutoLocker(20*time.Millisecond, rec.record)
	client := ws.NewClient("c1", "alice", "Alice", true, newMockConn())

	// A burst alternating between the same two lines must settle into
	// exactly one attempt per line.
	locker.Touch(client, testDocID, 1)
	locker.Touch(client, testDocID, 2)
	locker.Touch(client, testDocID, 1)
	locker.Touch(client, testDocID, 2)

	got := waitForAttempts(t, rec, 2)
	require.Len(t, got, 2)

	sort.Slice(got, func(i, j int) bool { return got[i].line < got[j].line })
	require.Equal(t, []lockAttempt{{testDocID, 1}, {testDocID, 2}}, got)
}

func TestAutoLocker_RepeatTouchDoesNotExtendWindow(t *testing.T) {
	t.Parallel()

	rec := &attemptRecorder{}
	locker := collab.NewAutoLocker(40*time.Millisecond, rec.record)
	client := ws.NewClient("c1", "alice", "Alice", true, newMockConn())

	locker.Touch(client, testDocID, 1)

	// Keep hammering the same line past the window; flushes must not be
	// postponed indefinitely because the pending set never changes.
	for i := 0; i < 5; i++ {
		time.Sleep(15 * time.Millisecond)
		locker.Touch(client, testDocID, 1)
	}

	got := waitForAttempts(t, rec, 1)
	require.Equal(t, 1, got[0].line)
}

func TestAutoLocker_ClientsAndDocumentsAreIndependent(t *testing.T) {
	t.Parallel()

	rec := &attemptRecorder{}
	locker := collab.NewAutoLocker(20*time.Millisecond, rec.record)
	alice := ws.NewClient("c1", "alice", "Alice", true, newMockConn())
	bob := ws.NewClient("c2", "bob", "Bob", true, newMockConn())

	locker.Touch(alice, "docA", 1)
	locker.Touch(bob, "docA", 1)
	locker.Touch(alice, "docB", 1)

	got := waitForAttempts(t, rec, 3)
	require.Len(t, got, 3)
}

func TestAutoLocker_CancelDropsPendingWork(t *testing.T) {
	t.Parallel()

	rec := &attemptRecorder{}
	locker := collab.NewAutoLocker(20*time.Millisecond, rec.record)
	client := ws.NewClient("c1", "alice", "Alice", true, newMockConn())

	locker.Touch(client, testDocID, 1)
	locker.Cancel(client)

	time.Sleep(60 * time.Millisecond)
	require.Empty(t, rec.snapshot())
}
