package dto

import (
	"encoding/json"

	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
)

// --- Initialization ---

// InitializeRequest seeds a session. InitializationSource is the platform survey id for
// "api". Documents arrive only as uploads on the multipart route.
type InitializeRequest struct {
	SessionId            string          `json:"session_id"`
	InitializationType   string          `json:"initialization_type" validate:"required,oneof=scratch api"`
	InitializationSource json.RawMessage `json:"initialization_source"`
	Username             string          `json:"username"`
	Password             string          `json:"password"`
}

// InitializeDocumentRequest carries the form fields of a multipart document upload.
type InitializeDocumentRequest struct {
	SessionId    string `form:"session_id"`
	Base         string `form:"base" validate:"omitempty,oneof=new existing local"`
	BaseSurveyId int64  `form:"base_survey_id" validate:"required_if=Base existing"`
	SurveyName   string `form:"survey_name" validate:"max=200"`
	Username     string `form:"username"`
	Password     string `form:"password"`

	FileName string `form:"-"`
	File     []byte `form:"-" validate:"required"`
}

type InitializeJSONRequest struct {
	SessionId  string          `json:"session_id"`
	SurveyJson json.RawMessage `json:"survey_json" validate:"required"`
	FileName   string          `json:"file_name"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
}

// --- Turns ---

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=20000"`
}

// SessionResponse is the session state returned by every survey endpoint.
type SessionResponse struct {
	SessionId      string               `json:"session_id"`
	SessionToken   string               `json:"session_token,omitempty"`
	Initialization store.Initialization `json:"initialization"`
	Initialized    bool                 `json:"initialized"`
	RemoteSurveyId *int64               `json:"remote_survey_id"`
	Survey         survey.Document      `json:"survey"`
	SaveStatus     store.SaveStatus     `json:"save_status,omitempty"`
	ImportErrors   []string             `json:"import_errors,omitempty"`
	Notices        []store.Notice       `json:"notices"`
	Error          string               `json:"error,omitempty"`
}

type ChatResponse struct {
	SessionResponse
	Reply  string `json:"reply"`
	Action string `json:"action"`
	Exited bool   `json:"exited"`
}

type SurveyResponse struct {
	SessionId      string          `json:"session_id"`
	RemoteSurveyId *int64          `json:"remote_survey_id"`
	Survey         survey.Document `json:"survey"`
}

type ExportResponse struct {
	FileName string
	Path     string
	Content  []byte
}
