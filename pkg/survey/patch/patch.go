// Package patch applies RFC 6902 JSON Patch operations to survey documents.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

var (
	// ErrMalformedPatch is returned before application when the patch is not a well-formed
	// sequence of operations.
	ErrMalformedPatch = errors.New("malformed patch")
	// ErrApply is returned when a well-formed patch cannot be applied to the document
	// (missing path, failed test, bad array index).
	ErrApply = errors.New("patch could not be applied")
)

const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// Operation is one JSON Patch step.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}

// Patch is an ordered list of operations.
type Patch []Operation

// Parse decodes raw into a Patch and checks its structure.
func Parse(raw []byte) (Patch, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of operations: %v", ErrMalformedPatch, err)
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array of operations, got null", ErrMalformedPatch)
	}

	p := make(Patch, 0, len(items))
	for i, item := range items {
		op, err := parseOperation(item)
		if err != nil {
			return nil, fmt.Errorf("%w: operation %d: %v", ErrMalformedPatch, i, err)
		}
		p = append(p, op)
	}
	return p, nil
}

func parseOperation(raw json.RawMessage) (Operation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Operation{}, fmt.Errorf("not a JSON object")
	}

	var op Operation
	if err := decodeString(fields, "op", &op.Op); err != nil {
		return op, err
	}
	if err := decodeString(fields, "path", &op.Path); err != nil {
		return op, err
	}
	value, hasValue := fields["value"]
	if hasValue {
		op.Value = value
	}
	_, hasFrom := fields["from"]
	if hasFrom {
		if err := decodeString(fields, "from", &op.From); err != nil {
			return op, err
		}
	}
	return op, op.validate(hasValue, hasFrom)
}

func decodeString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("missing %q", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%q must be a string", key)
	}
	return nil
}

func (o Operation) validate(hasValue, hasFrom bool) error {
	if !isPointer(o.Path) {
		return fmt.Errorf("path %q is not a JSON pointer", o.Path)
	}
	switch o.Op {
	case OpAdd, OpReplace, OpTest:
		if !hasValue {
			return fmt.Errorf("%s requires a value", o.Op)
		}
	case OpRemove:
	case OpMove, OpCopy:
		if !hasFrom {
			return fmt.Errorf("%s requires from", o.Op)
		}
		if !isPointer(o.From) {
			return fmt.Errorf("from %q is not a JSON pointer", o.From)
		}
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	return nil
}

func isPointer(p string) bool {
	return p == "" || strings.HasPrefix(p, "/")
}

// Validate re-checks a Patch built in code rather than parsed from text.
func (p Patch) Validate() error {
	for i, op := range p {
		if err := op.validate(op.Value != nil, true); err != nil {
			return fmt.Errorf("%w: operation %d: %v", ErrMalformedPatch, i, err)
		}
	}
	return nil
}

// Apply runs the patch against doc and returns the new document. doc itself is never
// modified; on failure the caller still holds the original bytes.
func Apply(doc []byte, p Patch) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrMalformedPatch, err)
	}
	decoded, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatch, err)
	}

	input := append([]byte(nil), doc...)
	out, err := decoded.Apply(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApply, err)
	}
	return out, nil
}

// Summary renders the operations as "op path" pairs for logs and notices.
func (p Patch) Summary() string {
	parts := make([]string, 0, len(p))
	for _, op := range p {
		parts = append(parts, op.Op+" "+op.Path)
	}
	return strings.Join(parts, ", ")
}
