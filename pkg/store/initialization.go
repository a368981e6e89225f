package store

import (
	"encoding/json"
	"fmt"
)

// Initialization records how a session was (or will be) seeded. Kind and Source are
// fixed once an initializer has completed.
type Initialization struct {
	Kind   Kind
	Source Source
	locked bool
}

// Source is a sealed set: ScratchSource, RemoteSource, DocumentSource and UploadSource.
type Source interface {
	sourceKind() Kind
}

type ScratchSource struct{}

type RemoteSource struct {
	SurveyID int64
}

// DocumentSource points at an uploaded questionnaire. Data wins over Path when both are set.
type DocumentSource struct {
	Path     string
	Data     []byte
	FileName string
	Base     Base
}

// UploadSource marks a session seeded with a complete survey document supplied by the
// caller. No initializer stage runs for it.
type UploadSource struct {
	FileName string
}

func (ScratchSource) sourceKind() Kind  { return KindScratch }
func (RemoteSource) sourceKind() Kind   { return KindAPI }
func (DocumentSource) sourceKind() Kind { return KindWord }
func (UploadSource) sourceKind() Kind   { return KindUpload }

// Base is the document a file import is layered onto: NewRemoteBase, ExistingRemoteBase
// or LocalBase.
type Base interface {
	baseName() string
}

type NewRemoteBase struct {
	SurveyName string
}

type ExistingRemoteBase struct {
	SurveyID int64
}

type LocalBase struct{}

func (NewRemoteBase) baseName() string      { return "new" }
func (ExistingRemoteBase) baseName() string { return "existing" }
func (LocalBase) baseName() string          { return "local" }

// BaseName is the wire name of b ("new", "existing", "local").
func BaseName(b Base) string {
	if b == nil {
		return ""
	}
	return b.baseName()
}

// NeedsCredentials reports whether seeding from src talks to the platform.
func NeedsCredentials(src Source) bool {
	switch s := src.(type) {
	case RemoteSource:
		return true
	case DocumentSource:
		switch s.Base.(type) {
		case NewRemoteBase, ExistingRemoteBase:
			return true
		}
	}
	return false
}

// NewInitialization pairs a source with the kind it implies.
func NewInitialization(src Source) Initialization {
	if src == nil {
		return Initialization{Kind: KindNone}
	}
	return Initialization{Kind: src.sourceKind(), Source: src}
}

func (i Initialization) Locked() bool {
	return i.locked
}

// Lock marks the initialization complete. Later calls are no-ops.
func (i *Initialization) Lock() {
	i.locked = true
}

func (i Initialization) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"type": string(i.Kind)}
	switch s := i.Source.(type) {
	case RemoteSource:
		out["survey_id"] = s.SurveyID
	case DocumentSource:
		out["file_name"] = s.FileName
		out["base"] = BaseName(s.Base)
	case UploadSource:
		if s.FileName != "" {
			out["file_name"] = s.FileName
		}
	}
	return json.Marshal(out)
}

func (i Initialization) String() string {
	return fmt.Sprintf("%s(%T)", i.Kind, i.Source)
}
