package document

import (
	"errors"
	"fmt"
	"time"

	"github.com/serroba/line-docs/internal/diff"
)

// Common errors.
var (
	ErrLineAlreadyLocked  = errors.New("line is already locked")
	ErrLineNotLockedByYou = errors.New("line is not locked by you")
	ErrVersionNotFound    = errors.New("version not found")
)

// LineLockedError rejects a write touching a line locked by another user.
// It carries the offending line so the caller can surface it.
type LineLockedError struct {
	Line int
}

func (e LineLockedError) Error() string {
	return fmt.Sprintf("line %d is locked by another user", e.Line)
}

// LineLock is an exclusive claim on one line of a document. At most one lock
// exists per line number.
type LineLock struct {
	LineNumber int       `json:"lineNumber"`
	LockedBy   string    `json:"lockedBy"`
	LockedAt   time.Time `json:"lockedAt"`
}

// LineEdit records which user last touched a line, for authorship display.
// At most one record exists per line number.
type LineEdit struct {
	LineNumber int       `json:"lineNumber"`
	EditedBy   string    `json:"editedBy"`
	EditedAt   time.Time `json:"editedAt"`
}

// Version is an immutable content snapshot plus its diff from the
// predecessor. Entries are only ever appended.
type Version struct {
	Content       string    `json:"content"`
	Author        string    `json:"author"`
	Diff          []diff.Op `json:"diff,omitempty"`
	VersionNumber int       `json:"versionNumber"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
}

// Document is the single shared mutable record of the system: the live text
// buffer plus lock state, edit provenance, membership, and version history.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Owner         string     `json:"owner"`
	Collaborators []string   `json:"collaborators"`
	ShareLink     string     `json:"shareLink,omitempty"`
	Version       int        `json:"version"`
	Versions      []Version  `json:"versions"`
	LockedLines   []LineLock `json:"lockedLines"`
	LineEdits     []LineEdit `json:"lineEdits"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastModified  time.Time  `json:"lastModified"`
}

// New creates a document owned by ownerID. The creation-time content is
// captured as version 1 so the version sequence starts at 1 with no gaps.
func New(id, title, ownerID, content string) *Document {
	now := time.Now()

	return &Document{
		ID:      id,
		Title:   title,
		Content: content,
		Owner:   ownerID,
		Version: 1,
		Versions: []Version{{
			Content:       content,
			Author:        ownerID,
			VersionNumber: 1,
			Description:   "Initial version",
			Timestamp:     now,
		}},
		CreatedAt:    now,
		LastModified: now,
	}
}

// HasAccess reports whether userID is the owner or a collaborator.
func (d *Document) HasAccess(userID string) bool {
	if userID == "" {
		return false
	}

	if userID == d.Owner {
		return true
	}

	for _, c := range d.Collaborators {
		if c == userID {
			return true
		}
	}

	return false
}

// AddCollaborator grants userID access. Adding an existing collaborator or
// the owner is a no-op.
func (d *Document) AddCollaborator(userID string) {
	if userID == "" || d.HasAccess(userID) {
		return
	}

	d.Collaborators = append(d.Collaborators, userID)
}

// LockLine transitions the line from UNLOCKED to LOCKED(userID). Any
// existing lock fails the call, including a repeat request from the current
// holder: re-locking is not idempotent.
func (d *Document) LockLine(line int, userID string) error {
	if d.lockIndex(line) >= 0 {
		return ErrLineAlreadyLocked
	}

	d.LockedLines = append(d.LockedLines, LineLock{
		LineNumber: line,
		LockedBy:   userID,
		LockedAt:   time.Now(),
	})

	return nil
}

// UnlockLine releases the lock on line. Only the holder or the document
// owner may release it.
func (d *Document) UnlockLine(line int, userID string) error {
	i := d.lockIndex(line)
	if i < 0 {
		return ErrLineNotLockedByYou
	}

	if d.LockedLines[i].LockedBy != userID && userID != d.Owner {
		return ErrLineNotLockedByYou
	}

	d.LockedLines = append(d.LockedLines[:i], d.LockedLines[i+1:]...)

	return nil
}

// ReleaseLocksHeldBy force-releases every lock held by userID, bypassing the
// holder check. Returns the released line numbers. Used for the disconnect
// cascade.
func (d *Document) ReleaseLocksHeldBy(userID string) []int {
	var (
		kept     []LineLock
		released []int
	)

	for _, lock := range d.LockedLines {
		if lock.LockedBy == userID {
			released = append(released, lock.LineNumber)
		} else {
			kept = append(kept, lock)
		}
	}

	d.LockedLines = kept

	return released
}

// IsLineLocked reports whether any lock exists for line.
func (d *Document) IsLineLocked(line int) bool {
	return d.lockIndex(line) >= 0
}

// LineLocker returns the user holding the lock on line, or "" if unlocked.
func (d *Document) LineLocker(line int) string {
	if i := d.lockIndex(line); i >= 0 {
		return d.LockedLines[i].LockedBy
	}

	return ""
}

// LockedByOther returns the foreign lock on line, if one exists.
func (d *Document) LockedByOther(line int, userID string) (LineLock, bool) {
	if i := d.lockIndex(line); i >= 0 && d.LockedLines[i].LockedBy != userID {
		return d.LockedLines[i], true
	}

	return LineLock{}, false
}

func (d *Document) lockIndex(line int) int {
	for i, lock := range d.LockedLines {
		if lock.LineNumber == line {
			return i
		}
	}

	return -1
}

// RecordLineEdit upserts the provenance record for line: one record per
// line, updated in place on repeat edits.
func (d *Document) RecordLineEdit(line int, userID string) {
	now := time.Now()

	for i := range d.LineEdits {
		if d.LineEdits[i].LineNumber == line {
			d.LineEdits[i].EditedBy = userID
			d.LineEdits[i].EditedAt = now

			return
		}
	}

	d.LineEdits = append(d.LineEdits, LineEdit{
		LineNumber: line,
		EditedBy:   userID,
		EditedAt:   now,
	})
}

// LineEditor returns the user who last touched line, or "" if untouched.
func (d *Document) LineEditor(line int) string {
	for _, edit := range d.LineEdits {
		if edit.LineNumber == line {
			return edit.EditedBy
		}
	}

	return ""
}

// AddVersion appends an immutable snapshot and bumps the monotonic version
// counter. History is never rewritten.
func (d *Document) AddVersion(content, author string, ops []diff.Op, description string) Version {
	v := Version{
		Content:       content,
		Author:        author,
		Diff:          ops,
		VersionNumber: d.Version + 1,
		Description:   description,
		Timestamp:     time.Now(),
	}

	d.Versions = append(d.Versions, v)
	d.Version = v.VersionNumber

	return v
}

// GetVersion returns the snapshot with the given version number.
func (d *Document) GetVersion(versionNumber int) (Version, error) {
	for _, v := range d.Versions {
		if v.VersionNumber == versionNumber {
			return v, nil
		}
	}

	return Version{}, ErrVersionNotFound
}

// RestoreVersion overwrites the live content with the stored snapshot. The
// restore itself does not append a version entry: the restored content
// simply becomes the live buffer going forward. That is policy, not an
// oversight.
func (d *Document) RestoreVersion(versionNumber int) error {
	v, err := d.GetVersion(versionNumber)
	if err != nil {
		return err
	}

	d.Content = v.Content

	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := *d
	out.Collaborators = append([]string(nil), d.Collaborators...)
	out.LockedLines = append([]LineLock(nil), d.LockedLines...)
	out.LineEdits = append([]LineEdit(nil), d.LineEdits...)
	out.Versions = make([]Version, len(d.Versions))

	for i, v := range d.Versions {
		v.Diff = append([]diff.Op(nil), v.Diff...)
		out.Versions[i] = v
	}

	return &out
}
