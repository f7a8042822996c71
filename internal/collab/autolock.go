package collab

import (
	"sync"
	"time"

	"github.com/serroba/line-docs/internal/ws"
)

// DefaultAutoLockDelay is how long a client's edit activity must settle
// before the accumulated lines are submitted for locking.
const DefaultAutoLockDelay = 500 * time.Millisecond

// AutoLocker coalesces bursts of edit activity into lock attempts. Each
// (client, document) pair accumulates the distinct lines touched during a
// burst; the timer restarts only when the set of pending lines grows, so
// repeated edits to the same lines do not postpone the flush forever. On
// flush each distinct line produces exactly one attempt.
type AutoLocker struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*pendingLocks

	// attempt is called outside the AutoLocker lock, once per line.
	attempt func(docID string, client *ws.Client, line int)
}

type pendingLocks struct {
	client *ws.Client
	docID  string
	lines  map[int]struct{}
	timer  *time.Timer
}

// NewAutoLocker creates a debouncer that calls attempt for each settled
// line. A zero delay gets DefaultAutoLockDelay.
func NewAutoLocker(delay time.Duration, attempt func(docID string, client *ws.Client, line int)) *AutoLocker {
	if delay <= 0 {
		delay = DefaultAutoLockDelay
	}

	return &AutoLocker{
		delay:   delay,
		pending: make(map[string]*pendingLocks),
		attempt: attempt,
	}
}

// Touch records edit activity on a line and arms or extends the debounce
// window for that client and document.
func (a *AutoLocker) Touch(client *ws.Client, docID string, line int) {
	if line < 0 {
		return
	}

	key := client.ID + "/" + docID

	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[key]
	if !ok {
		p = &pendingLocks{
			client: client,
			docID:  docID,
			lines:  make(map[int]struct{}),
		}
		a.pending[key] = p
	}

	if _, seen := p.lines[line]; seen {
		return
	}

	p.lines[line] = struct{}{}

	if p.timer != nil {
		p.timer.Stop()
	}

	p.timer = time.AfterFunc(a.delay, func() {
		a.flush(key)
	})
}

// Cancel discards all pending activity for a client, typically on
// disconnect.
func (a *AutoLocker) Cancel(client *ws.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, p := range a.pending {
		if p.client.ID != client.ID {
			continue
		}

		if p.timer != nil {
			p.timer.Stop()
		}

		delete(a.pending, key)
	}
}

func (a *AutoLocker) flush(key string) {
	a.mu.Lock()

	p, ok := a.pending[key]
	if !ok {
		a.mu.Unlock()

		return
	}

	delete(a.pending, key)

	lines := make([]int, 0, len(p.lines))
	for line := range p.lines {
		lines = append(lines, line)
	}

	a.mu.Unlock()

	for _, line := range lines {
		a.attempt(p.docID, p.client, line)
	}
}
