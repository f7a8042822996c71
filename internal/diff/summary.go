package diff

import (
	"fmt"
	"strings"
)

// Summary produces a human-readable description of a diff: added and removed
// character counts, with each delete run immediately followed by an insert
// run folded into a single "changed" count equal to the shorter run. The
// folding keeps a substitution from being reported as both a deletion and an
// insertion.
func Summary(ops []Op) string {
	var insertions, deletions, changes int

	for _, op := range ops {
		switch op.Type {
		case Insert:
			insertions += len([]rune(op.Text))
		case Delete:
			deletions += len([]rune(op.Text))
		case Equal:
		}
	}

	for i := 0; i < len(ops)-1; i++ {
		if ops[i].Type == Delete && ops[i+1].Type == Insert {
			n := min(len([]rune(ops[i].Text)), len([]rune(ops[i+1].Text)))
			changes += n
			deletions -= n
			insertions -= n
		}
	}

	var parts []string

	if insertions > 0 {
		parts = append(parts, fmt.Sprintf("Added %d characters", insertions))
	}

	if deletions > 0 {
		parts = append(parts, fmt.Sprintf("Removed %d characters", deletions))
	}

	if changes > 0 {
		parts = append(parts, fmt.Sprintf("Changed %d characters", changes))
	}

	if len(parts) == 0 {
		return "No changes"
	}

	return strings.Join(parts, ", ")
}
