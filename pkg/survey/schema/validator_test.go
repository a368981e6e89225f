package schema

import (
	"testing"

	"survey-assistant-be/pkg/survey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scratchDoc(t *testing.T) survey.Document {
	t.Helper()
	doc, err := survey.NewScratch("").Document()
	require.NoError(t, err)
	return doc
}

func TestValidateScratchDocument(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	assert.NoError(t, v.Validate(scratchDoc(t)))
}

func TestValidateViolations(t *testing.T) {
	v := MustNew()

	tests := []struct {
		name     string
		doc      string
		wantPath string
	}{
		{
			name:     "blocks with wrong type",
			doc:      `{"languages":["en"],"blocks":"not-an-array"}`,
			wantPath: "/blocks",
		},
		{
			name:     "missing languages",
			doc:      `{"blocks":[]}`,
			wantPath: "",
		},
		{
			name:     "empty language list",
			doc:      `{"languages":[],"blocks":[]}`,
			wantPath: "/languages",
		},
		{
			name:     "question without type",
			doc:      `{"languages":["en"],"blocks":[{"name":"B1","questions":[{"name":"Q1"}]}]}`,
			wantPath: "/blocks/0/questions/0",
		},
		{
			name:     "string survey id",
			doc:      `{"id":"12","languages":["en"],"blocks":[]}`,
			wantPath: "/id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.doc))
			require.Error(t, err)

			violations := Violations(err)
			require.NotEmpty(t, violations)

			paths := make([]string, 0, len(violations))
			for _, viol := range violations {
				paths = append(paths, viol.Path)
				assert.NotEmpty(t, viol.Message)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateRejectsNonJSON(t *testing.T) {
	err := MustNew().Validate([]byte(`{"languages":`))
	require.Error(t, err)
	assert.Nil(t, Violations(err))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Path: "/blocks", Message: "expected array, but got string"},
		{Path: "", Message: "missing properties: 'languages'"},
	}}
	assert.Contains(t, err.Error(), "2 violation(s)")
	assert.Contains(t, err.Error(), "/blocks: expected array, but got string")
	assert.Contains(t, err.Error(), "/: missing properties")
}
