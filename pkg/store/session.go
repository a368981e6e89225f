package store

import (
	"time"

	"survey-assistant-be/pkg/survey"
)

// Kind names the initializer a session starts from.
type Kind string

const (
	KindNone    Kind = ""
	KindScratch Kind = "scratch"
	KindAPI     Kind = "api"
	KindWord    Kind = "word"
	KindUpload  Kind = "json"
)

// SaveStatus is the outcome of the last save attempt.
type SaveStatus string

const (
	SaveUnset     SaveStatus = ""
	SaveSucceeded SaveStatus = "succeeded"
	SaveFailed    SaveStatus = "failed"
)

// Credentials authenticate against the survey platform. They are never rendered.
type Credentials struct {
	Username string `json:"-"`
	Password string `json:"-"`
}

func (c Credentials) String() string {
	return "[REDACTED]"
}

// Session is the state shared by every stage of one conversation. Stages run one at a
// time per session; the record itself holds no lock.
type Session struct {
	ID          string         `json:"id"`
	Init        Initialization `json:"initialization"`
	Credentials *Credentials   `json:"-"`

	// Document is replaced wholesale on every accepted edit, never mutated in place.
	Document survey.Document `json:"survey"`
	remoteID *int64

	PendingMessage string     `json:"-"`
	LastDisplay    string     `json:"last_display,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	SaveStatus     SaveStatus `json:"save_status,omitempty"`

	// DocumentText carries extracted text from the document initializer to the chunk
	// import; cleared once the import has run.
	DocumentText string   `json:"-"`
	ImportErrors []string `json:"import_errors,omitempty"`

	Notices     []Notice  `json:"-"`
	CreateCalls int       `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewSession(id string, init Initialization, creds *Credentials) *Session {
	return &Session{
		ID:          id,
		Init:        init,
		Credentials: creds,
		CreatedAt:   time.Now(),
	}
}

// RemoteID returns the platform identity, if one has been adopted.
func (s *Session) RemoteID() (int64, bool) {
	if s.remoteID == nil {
		return 0, false
	}
	return *s.remoteID, true
}

// AdoptRemoteID records the platform identity. Once set it only ever changes through
// another adoption; nothing clears it.
func (s *Session) AdoptRemoteID(id int64) {
	s.remoteID = &id
}

// HasCredentials reports whether both username and password are present.
func (s *Session) HasCredentials() bool {
	return s.Credentials != nil && s.Credentials.Username != "" && s.Credentials.Password != ""
}

// SetDocument replaces the working document. Callers validate before calling.
func (s *Session) SetDocument(doc survey.Document) {
	s.Document = doc
}

func (s *Session) Fail(msg string) {
	s.LastError = msg
}

func (s *Session) ClearError() {
	s.LastError = ""
}
