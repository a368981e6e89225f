package survey

import (
	"encoding/json"
	"fmt"
)

const (
	DefaultLanguage    = "en"
	ScratchSurveyName  = "New Survey from Bot"
	DocumentSurveyName = "Survey from Word"
	UnnamedSurveyName  = "Unnamed Survey"
)

// Questionnaire holds the top-level keys of a survey document. Nested structures
// (blocks, choice lists, styles, ...) stay raw and are governed by the schema.
type Questionnaire struct {
	SchemaVersion    string                       `json:"_v,omitempty"`
	ModifiedAt       string                       `json:"_d,omitempty"`
	ID               *int64                       `json:"id"`
	Name             *string                      `json:"name"`
	Version          int                          `json:"version"`
	UseS2            bool                         `json:"useS2"`
	Settings         map[string]interface{}       `json:"settings"`
	Languages        []string                     `json:"languages"`
	DefaultLanguage  *string                      `json:"defaultLanguage"`
	Blocks           []json.RawMessage            `json:"blocks"`
	ChoiceLists      []json.RawMessage            `json:"choiceLists"`
	QuestionStyles   []json.RawMessage            `json:"questionStyles,omitempty"`
	Shortcuts        []json.RawMessage            `json:"shortcuts,omitempty"`
	Randomizations   []json.RawMessage            `json:"randomizations,omitempty"`
	Columns          map[string]interface{}       `json:"columns,omitempty"`
	SurveyProperties map[string]interface{}       `json:"surveyProperties,omitempty"`
	TranslatedTexts  map[string]map[string]string `json:"translatedTexts"`
	Theme            map[string]interface{}       `json:"theme"`
}

// NewScratch builds the minimal questionnaire: no identity, no blocks, no choice lists and a
// single default language.
func NewScratch(name string) Questionnaire {
	if name == "" {
		name = ScratchSurveyName
	}
	lang := DefaultLanguage
	return Questionnaire{
		Name:            &name,
		Version:         1,
		Settings:        map[string]interface{}{},
		Languages:       []string{DefaultLanguage},
		DefaultLanguage: &lang,
		Blocks:          []json.RawMessage{},
		ChoiceLists:     []json.RawMessage{},
		TranslatedTexts: map[string]map[string]string{DefaultLanguage: {}},
		Theme:           map[string]interface{}{},
	}
}

// Document encodes the questionnaire.
func (q Questionnaire) Document() (Document, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode questionnaire: %w", err)
	}
	return Document(raw), nil
}
