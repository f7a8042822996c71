package diff

// OpType classifies a diff span. The numeric values are part of the wire
// format: a diff is serialized as an ordered list of [opcode, text] pairs.
type OpType int

const (
	Delete OpType = -1
	Equal  OpType = 0
	Insert OpType = 1
)

// Op is a single tagged span of a text diff.
type Op struct {
	Type OpType
	Text string
}

// Diff computes an ordered sequence of operations transforming oldText into
// newText. It runs a Myers shortest-edit search over runes, after trimming
// the common prefix and suffix, and finishes with a semantic cleanup pass
// that folds small noisy fragments into larger coherent edits.
func Diff(oldText, newText string) []Op {
	if oldText == newText {
		if oldText == "" {
			return nil
		}

		return []Op{{Type: Equal, Text: oldText}}
	}

	a := []rune(oldText)
	b := []rune(newText)

	prefix := commonPrefix(a, b)
	a, b = a[prefix:], b[prefix:]

	suffix := commonSuffix(a, b)

	var ops []Op

	if prefix > 0 {
		ops = append(ops, Op{Type: Equal, Text: string([]rune(oldText)[:prefix])})
	}

	ops = append(ops, myers(a[:len(a)-suffix], b[:len(b)-suffix])...)

	if suffix > 0 {
		ops = append(ops, Op{Type: Equal, Text: string(a[len(a)-suffix:])})
	}

	return cleanupSemantic(ops)
}

// NewText reconstructs the post-diff text from a sequence of operations.
func NewText(ops []Op) string {
	var out []rune

	for _, op := range ops {
		if op.Type == Equal || op.Type == Insert {
			out = append(out, []rune(op.Text)...)
		}
	}

	return string(out)
}

// OldText reconstructs the pre-diff text from a sequence of operations.
func OldText(ops []Op) string {
	var out []rune

	for _, op := range ops {
		if op.Type == Equal || op.Type == Delete {
			out = append(out, []rune(op.Text)...)
		}
	}

	return string(out)
}

// commonPrefix returns the length of the shared prefix of a and b.
func commonPrefix(a, b []rune) int {
	n := min(len(a), len(b))

	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}

	return n
}

// commonSuffix returns the length of the shared suffix of a and b.
func commonSuffix(a, b []rune) int {
	n := min(len(a), len(b))

	for i := 1; i <= n; i++ {
		if a[len(a)-i] != b[len(b)-i] {
			return i - 1
		}
	}

	return n
}

// myers runs the greedy O(ND) shortest-edit-script search and backtracks the
// recorded frontier into an operation sequence.
func myers(a, b []rune) []Op {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil
	case len(a) == 0:
		return []Op{{Type: Insert, Text: string(b)}}
	case len(b) == 0:
		return []Op{{Type: Delete, Text: string(a)}}
	}

	n, m := len(a), len(b)
	maxD := n + m
	offset := maxD

	// v[offset+k] holds the furthest x reached on diagonal k.
	v := make([]int, 2*maxD+1)

	var trace [][]int

search:
	for d := 0; d <= maxD; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}

			y := x - k

			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}

			v[offset+k] = x

			if x >= n && y >= m {
				break search
			}
		}
	}

	return backtrack(a, b, trace, offset)
}

// backtrack walks the recorded frontiers from (len(a), len(b)) back to the
// origin, emitting one rune per step. Runs are coalesced by cleanupMerge.
func backtrack(a, b []rune, trace [][]int, offset int) []Op {
	x, y := len(a), len(b)

	var reversed []Op

	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}

		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			reversed = append(reversed, Op{Type: Equal, Text: string(a[x-1])})
			x--
			y--
		}

		if d > 0 {
			if x == prevX {
				reversed = append(reversed, Op{Type: Insert, Text: string(b[prevY])})
			} else {
				reversed = append(reversed, Op{Type: Delete, Text: string(a[prevX])})
			}
		}

		x, y = prevX, prevY
	}

	ops := make([]Op, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		ops = append(ops, reversed[i])
	}

	return cleanupMerge(ops)
}

// cleanupMerge normalizes an operation sequence: empty spans are dropped,
// adjacent equalities concatenate, and each run of edits collapses into at
// most one delete followed by one insert.
func cleanupMerge(ops []Op) []Op {
	var (
		out     []Op
		deleted []rune
		added   []rune
	)

	flush := func() {
		if len(deleted) > 0 {
			out = append(out, Op{Type: Delete, Text: string(deleted)})
			deleted = nil
		}

		if len(added) > 0 {
			out = append(out, Op{Type: Insert, Text: string(added)})
			added = nil
		}
	}

	for _, op := range ops {
		if op.Text == "" {
			continue
		}

		switch op.Type {
		case Delete:
			deleted = append(deleted, []rune(op.Text)...)
		case Insert:
			added = append(added, []rune(op.Text)...)
		case Equal:
			flush()

			if len(out) > 0 && out[len(out)-1].Type == Equal {
				out[len(out)-1].Text += op.Text
			} else {
				out = append(out, op)
			}
		}
	}

	flush()

	return out
}

// cleanupSemantic removes equalities that are shorter than both surrounding
// edits, turning delete/equal/insert sandwiches into single larger edits.
func cleanupSemantic(ops []Op) []Op {
	changed := true

	for changed {
		changed = false

		for i := 1; i < len(ops)-1; i++ {
			if ops[i].Type != Equal || ops[i-1].Type == Equal || ops[i+1].Type == Equal {
				continue
			}

			eqLen := len([]rune(ops[i].Text))
			if eqLen <= len([]rune(ops[i-1].Text)) && eqLen <= len([]rune(ops[i+1].Text)) {
				// Degrade the equality to a paired delete+insert; the merge
				// pass below folds it into its neighbours.
				text := ops[i].Text
				rest := append([]Op{{Type: Delete, Text: text}, {Type: Insert, Text: text}}, ops[i+1:]...)
				ops = append(ops[:i], rest...)
				changed = true

				break
			}
		}

		if changed {
			ops = cleanupMerge(ops)
		}
	}

	return ops
}
