package stage

import (
	"context"
	"fmt"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/voxco"
)

// fail records a stage failure on the session and routes to the error stage.
func fail(s *store.Session, log logger.ILogger, module, prefix string, err error) flow.Action {
	s.Fail(fmt.Sprintf("%s: %v", prefix, err))
	log.Error(module, prefix, map[string]interface{}{
		"session_id": s.ID,
		"error":      err.Error(),
	})
	return flow.ActionError
}

// succeed finishes an initializer: the document is adopted, the error cleared and the
// initialization kind frozen.
func succeed(s *store.Session, doc survey.Document) {
	s.SetDocument(doc)
	s.ClearError()
	s.Init.Lock()
}

// login authenticates with the session credentials.
func login(ctx context.Context, gw voxco.Gateway, s *store.Session) (string, error) {
	if !s.HasCredentials() {
		return "", ErrMissingCredentials
	}
	return gw.Authenticate(ctx, s.Credentials.Username, s.Credentials.Password)
}

// fetchRemote downloads a survey and refuses payloads that are corrupt or off-schema.
func fetchRemote(ctx context.Context, gw voxco.Gateway, v *schema.Validator, token string, id int64) (survey.Document, error) {
	doc, err := gw.Fetch(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if err := survey.CheckRemotePayload(doc); err != nil {
		return nil, err
	}
	if err := v.Validate(doc); err != nil {
		return nil, fmt.Errorf("remote survey %d rejected: %w", id, err)
	}
	return doc, nil
}

// scratchDocument builds and validates a fresh document with the given name.
func scratchDocument(v *schema.Validator, name string) (survey.Document, error) {
	doc, err := survey.NewScratch(name).Document()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RouterStage dispatches on the initialization kind.
type RouterStage struct {
	log logger.ILogger
}

func (r *RouterStage) ID() flow.StageID { return RouterID }

func (r *RouterStage) Run(ctx context.Context, s *store.Session) flow.Action {
	var action flow.Action
	switch s.Init.Kind {
	case store.KindScratch:
		action = ActionScratch
	case store.KindAPI:
		action = ActionAPI
	case store.KindWord:
		action = ActionWord
	default:
		return fail(s, r.log, "STAGE.ROUTER", "Initialization failed", ErrNoInitialization)
	}
	r.log.Info("STAGE.ROUTER", "[PHASE 1] Initialization routed", map[string]interface{}{
		"session_id": s.ID,
		"kind":       s.Init.Kind,
	})
	return action
}

// ScratchStage seeds an empty survey.
type ScratchStage struct {
	schema *schema.Validator
	log    logger.ILogger
}

func (st *ScratchStage) ID() flow.StageID { return ScratchID }

func (st *ScratchStage) Run(ctx context.Context, s *store.Session) flow.Action {
	doc, err := scratchDocument(st.schema, survey.ScratchSurveyName)
	if err != nil {
		return fail(s, st.log, "STAGE.SCRATCH", "Scratch initialization failed", err)
	}
	succeed(s, doc)
	st.log.Info("STAGE.SCRATCH", "[PHASE 2] Survey initialized from scratch", map[string]interface{}{
		"session_id": s.ID,
	})
	return flow.ActionDefault
}

// RemoteStage adopts an existing platform survey by id.
type RemoteStage struct {
	gateway voxco.Gateway
	schema  *schema.Validator
	log     logger.ILogger
}

func (st *RemoteStage) ID() flow.StageID { return APIID }

func (st *RemoteStage) Run(ctx context.Context, s *store.Session) flow.Action {
	src, ok := s.Init.Source.(store.RemoteSource)
	if !ok {
		return fail(s, st.log, "STAGE.API", "API import failed", ErrMissingSource)
	}
	token, err := login(ctx, st.gateway, s)
	if err != nil {
		return fail(s, st.log, "STAGE.API", "API import failed", err)
	}
	doc, err := fetchRemote(ctx, st.gateway, st.schema, token, src.SurveyID)
	if err != nil {
		return fail(s, st.log, "STAGE.API", "API import failed", err)
	}

	succeed(s, doc)
	s.AdoptRemoteID(src.SurveyID)
	st.log.Info("STAGE.API", "[PHASE 2] Survey imported from platform", map[string]interface{}{
		"session_id": s.ID,
		"survey_id":  src.SurveyID,
		"name":       doc.Name(),
	})
	return flow.ActionDefault
}
