package collab

import (
	"sync"
	"time"
)

// DefaultAutoVersionInterval is the minimum gap between policy-triggered
// snapshots of a document.
const DefaultAutoVersionInterval = 10 * time.Minute

// VersionPolicy decides when a document has accumulated enough edit
// activity to deserve an automatic snapshot: at least the configured
// interval since the last version, and at least one changed line since.
type VersionPolicy struct {
	mu       sync.Mutex
	interval time.Duration
	state    map[string]*versionState

	now func() time.Time
}

type versionState struct {
	lastVersion time.Time
	changed     bool
}

// NewVersionPolicy creates a policy. A zero interval gets
// DefaultAutoVersionInterval.
func NewVersionPolicy(interval time.Duration) *VersionPolicy {
	if interval <= 0 {
		interval = DefaultAutoVersionInterval
	}

	return &VersionPolicy{
		interval: interval,
		state:    make(map[string]*versionState),
		now:      time.Now,
	}
}

// RecordChange marks the document as dirty since its last version.
func (p *VersionPolicy) RecordChange(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.docState(docID).changed = true
}

// ShouldCreate reports whether the document is due for an automatic
// snapshot.
func (p *VersionPolicy) ShouldCreate(docID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.docState(docID)

	return st.changed && p.now().Sub(st.lastVersion) >= p.interval
}

// MarkVersioned resets the clock and the dirty flag after any version was
// created, automatic or manual.
func (p *VersionPolicy) MarkVersioned(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.docState(docID)
	st.lastVersion = p.now()
	st.changed = false
}

func (p *VersionPolicy) docState(docID string) *versionState {
	st, ok := p.state[docID]
	if !ok {
		st = &versionState{lastVersion: p.now()}
		p.state[docID] = st
	}

	return st
}
