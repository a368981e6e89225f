package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorruptPayload marks a survey payload that lacks the fields every platform survey carries.
var ErrCorruptPayload = errors.New("survey payload lacks essential properties")

// Document is a survey document kept as raw UTF-8 JSON.
// A Document is never edited in place: every change produces a new value.
type Document []byte

// Parse checks that raw is a single JSON object and returns it as a Document.
func Parse(raw []byte) (Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("survey document must be a JSON object")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("survey document is not valid JSON")
	}
	return Document(append([]byte(nil), trimmed...)), nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = nil
		return nil
	}
	*d = append(Document(nil), b...)
	return nil
}

// IsZero reports whether no document has been established.
func (d Document) IsZero() bool {
	return len(d) == 0
}

// Clone returns an independent copy of the document bytes.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return append(Document(nil), d...)
}

// Equal reports byte-for-byte equality.
func (d Document) Equal(other Document) bool {
	return bytes.Equal(d, other)
}

type header struct {
	ID        json.RawMessage `json:"id"`
	Name      *string         `json:"name"`
	Languages json.RawMessage `json:"languages"`
}

func (d Document) header() (header, error) {
	var h header
	if err := json.Unmarshal(d, &h); err != nil {
		return h, fmt.Errorf("decode survey header: %w", err)
	}
	return h, nil
}

// Name returns the survey name, or "" when absent or null.
func (d Document) Name() string {
	h, err := d.header()
	if err != nil || h.Name == nil {
		return ""
	}
	return *h.Name
}

// ID returns the document's own identity field when it holds an integer.
func (d Document) ID() (int64, bool) {
	h, err := d.header()
	if err != nil || len(h.ID) == 0 || string(h.ID) == "null" {
		return 0, false
	}
	var id int64
	if err := json.Unmarshal(h.ID, &id); err != nil {
		return 0, false
	}
	return id, true
}

// WithoutID returns a copy whose "id" field is null. Documents that did not come from the
// survey platform must not carry a platform identity.
func (d Document) WithoutID() (Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(d, &fields); err != nil {
		return nil, fmt.Errorf("decode survey document: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("survey document must be a JSON object")
	}
	fields["id"] = json.RawMessage("null")
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode survey document: %w", err)
	}
	return Document(out), nil
}

// CheckRemotePayload verifies the minimal shape of a survey fetched from the platform:
// a numeric id and a languages array.
func CheckRemotePayload(d Document) error {
	h, err := d.header()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	var id interface{}
	dec := json.NewDecoder(bytes.NewReader(h.ID))
	dec.UseNumber()
	if len(h.ID) == 0 || dec.Decode(&id) != nil {
		return fmt.Errorf("%w: missing numeric id", ErrCorruptPayload)
	}
	if _, ok := id.(json.Number); !ok {
		return fmt.Errorf("%w: missing numeric id", ErrCorruptPayload)
	}
	var langs []json.RawMessage
	if len(h.Languages) == 0 || json.Unmarshal(h.Languages, &langs) != nil || langs == nil {
		return fmt.Errorf("%w: missing languages array", ErrCorruptPayload)
	}
	return nil
}

// Pretty renders the document with two-space indentation.
func (d Document) Pretty() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, d, "", "  "); err != nil {
		return nil, fmt.Errorf("indent survey document: %w", err)
	}
	return buf.Bytes(), nil
}
