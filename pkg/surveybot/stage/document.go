package stage

import (
	"context"
	"fmt"
	"strings"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/extract"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/voxco"
)

// DocumentStage prepares a document import: it extracts the text and resolves the base
// survey the chunks will be merged into.
type DocumentStage struct {
	gateway   voxco.Gateway
	extractor extract.Extractor
	schema    *schema.Validator
	log       logger.ILogger
}

func (st *DocumentStage) ID() flow.StageID { return DocumentID }

func (st *DocumentStage) Run(ctx context.Context, s *store.Session) flow.Action {
	const prefix = "Word document initialization failed"

	src, ok := s.Init.Source.(store.DocumentSource)
	if !ok || (src.Path == "" && len(src.Data) == 0) {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, ErrMissingSource)
	}
	if src.Base == nil {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, fmt.Errorf("%w: no base survey strategy", ErrMissingSource))
	}
	if store.NeedsCredentials(src) && !s.HasCredentials() {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, ErrMissingCredentials)
	}

	// Text first: a failed extraction must not leave a freshly created remote survey behind.
	text, err := st.extractor.Extract(ctx, extract.Source{Path: src.Path, Data: src.Data, Name: src.FileName})
	if err != nil {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, err)
	}
	if strings.TrimSpace(text) == "" {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, ErrEmptyText)
	}

	base, remoteID, hasRemote, err := st.resolveBase(ctx, s, src.Base)
	if err != nil {
		return fail(s, st.log, "STAGE.DOCUMENT", prefix, err)
	}

	succeed(s, base)
	if hasRemote {
		s.AdoptRemoteID(remoteID)
	}
	s.DocumentText = text
	st.log.Info("STAGE.DOCUMENT", "[PHASE 2] Document read, base survey ready", map[string]interface{}{
		"session_id": s.ID,
		"base":       store.BaseName(src.Base),
		"text_chars": len(text),
	})
	return ActionWordReady
}

func (st *DocumentStage) resolveBase(ctx context.Context, s *store.Session, base store.Base) (survey.Document, int64, bool, error) {
	switch b := base.(type) {
	case store.NewRemoteBase:
		name := strings.TrimSpace(b.SurveyName)
		if name == "" {
			name = survey.DocumentSurveyName
		}
		token, err := login(ctx, st.gateway, s)
		if err != nil {
			return nil, 0, false, err
		}
		id, err := st.gateway.Create(ctx, name, token)
		s.CreateCalls++
		if err != nil {
			return nil, 0, false, err
		}
		s.AdoptRemoteID(id)
		doc, err := scratchDocument(st.schema, name)
		return doc, id, err == nil, err

	case store.ExistingRemoteBase:
		token, err := login(ctx, st.gateway, s)
		if err != nil {
			return nil, 0, false, err
		}
		doc, err := fetchRemote(ctx, st.gateway, st.schema, token, b.SurveyID)
		return doc, b.SurveyID, err == nil, err

	case store.LocalBase:
		doc, err := scratchDocument(st.schema, survey.DocumentSurveyName)
		return doc, 0, false, err
	}
	return nil, 0, false, fmt.Errorf("%w: unknown base %T", ErrMissingSource, base)
}
