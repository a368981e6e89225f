package stage

import (
	"context"
	"fmt"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/voxco"
)

// SaveStage pushes the document to the platform, creating the remote survey on the first
// save of a session.
type SaveStage struct {
	gateway voxco.Gateway
	log     logger.ILogger
}

func (st *SaveStage) ID() flow.StageID { return SaveID }

func (st *SaveStage) Run(ctx context.Context, s *store.Session) flow.Action {
	if s.Document.IsZero() {
		return st.failed(s, ErrNoDocument)
	}
	if !s.HasCredentials() {
		return st.failed(s, ErrMissingCredentials)
	}

	token, err := login(ctx, st.gateway, s)
	if err != nil {
		return st.failed(s, err)
	}

	id, ok := s.RemoteID()
	if !ok {
		name := s.Document.Name()
		if name == "" {
			name = survey.UnnamedSurveyName
		}
		id, err = st.gateway.Create(ctx, name, token)
		s.CreateCalls++
		if err != nil {
			return st.failed(s, err)
		}
		// Adopt before writing so a failed write never leads to a second create.
		s.AdoptRemoteID(id)
		st.log.Info("STAGE.SAVE", "Remote survey created", map[string]interface{}{
			"session_id": s.ID,
			"survey_id":  id,
		})
	}

	if err := st.gateway.Replace(ctx, id, s.Document, token); err != nil {
		return st.failed(s, err)
	}

	s.SaveStatus = store.SaveSucceeded
	s.ClearError()
	s.Notify(store.LevelInfo, fmt.Sprintf("Survey successfully saved to Voxco with ID: %d", id))
	st.log.Info("STAGE.SAVE", "Survey saved", map[string]interface{}{
		"session_id": s.ID,
		"survey_id":  id,
	})
	return flow.ActionDefault
}

func (st *SaveStage) failed(s *store.Session, err error) flow.Action {
	s.SaveStatus = store.SaveFailed
	return fail(s, st.log, "STAGE.SAVE", "Failed to save survey", err)
}
