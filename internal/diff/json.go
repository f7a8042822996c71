package diff

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedOp is returned when a serialized operation is not a
// two-element [opcode, text] tuple with a known opcode.
var ErrMalformedOp = errors.New("malformed diff operation")

// MarshalJSON encodes the operation as an [opcode, text] tuple so the wire
// format stays language-neutral.
func (o Op) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{int(o.Type), o.Text})
}

// UnmarshalJSON decodes an [opcode, text] tuple.
func (o *Op) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOp, err)
	}

	if len(tuple) != 2 {
		return fmt.Errorf("%w: expected 2 elements, got %d", ErrMalformedOp, len(tuple))
	}

	var opcode int
	if err := json.Unmarshal(tuple[0], &opcode); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOp, err)
	}

	switch OpType(opcode) {
	case Delete, Equal, Insert:
	default:
		return fmt.Errorf("%w: unknown opcode %d", ErrMalformedOp, opcode)
	}

	var text string
	if err := json.Unmarshal(tuple[1], &text); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedOp, err)
	}

	o.Type = OpType(opcode)
	o.Text = text

	return nil
}
