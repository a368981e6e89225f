// Package schema validates survey documents against the embedded questionnaire schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed questionnaire-schema.json
var questionnaireSchema []byte

const schemaURL = "https://survey-assistant.local/schemas/questionnaire-schema.json"

// Violation is one schema failure, located by JSON pointer into the document.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	path := v.Path
	if path == "" {
		path = "/"
	}
	return path + ": " + v.Message
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	items := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		items = append(items, v.String())
	}
	return fmt.Sprintf("survey does not satisfy the schema (%d violation(s)): %s",
		len(e.Violations), strings.Join(items, "; "))
}

// Validator wraps the compiled questionnaire schema. It holds no other state and is safe
// for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
	raw    []byte
}

// New compiles the embedded questionnaire schema.
func New() (*Validator, error) {
	return Compile(questionnaireSchema)
}

// MustNew is New for package-level wiring; the embedded schema is fixed at build time.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Compile builds a validator from an arbitrary draft-07 schema.
func Compile(raw []byte) (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load survey schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile survey schema: %w", err)
	}
	return &Validator{schema: s, raw: append([]byte(nil), raw...)}, nil
}

// Raw returns the schema text, used when prompting the language model.
func (v *Validator) Raw() []byte {
	return v.raw
}

// Validate returns nil when doc satisfies the schema, a *ValidationError listing the
// violations when it does not, or a plain error when doc is not JSON at all.
func (v *Validator) Validate(doc []byte) error {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var instance interface{}
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode survey document: %w", err)
	}

	err := v.schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate survey document: %w", err)
	}

	var violations []Violation
	collect(ve, &violations)
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Path < violations[j].Path
	})
	return &ValidationError{Violations: violations}
}

// Violations extracts the violation list from err, if it is a schema failure.
func Violations(err error) []Violation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

func collect(ve *jsonschema.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Path: ve.InstanceLocation, Message: ve.Message})
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}
