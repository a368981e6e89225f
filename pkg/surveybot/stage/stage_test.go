package stage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/surveybot/stage/stagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	graph *flow.Graph
	llm   *stagetest.LLM
	gw    *stagetest.Gateway
	ext   *stagetest.Extractor
	v     *schema.Validator
}

func newHarness(t *testing.T, model *stagetest.LLM) *harness {
	t.Helper()
	if model == nil {
		model = stagetest.Replies()
	}
	h := &harness{
		llm: model,
		gw:  stagetest.NewGateway(),
		ext: &stagetest.Extractor{Text: "Section A\n\nHow old are you?"},
		v:   schema.MustNew(),
	}
	g, err := NewGraph(Deps{
		LLM:       h.llm,
		Gateway:   h.gw,
		Extractor: h.ext,
		Schema:    h.v,
		Log:       logger.NewNopLogger(),
	})
	require.NoError(t, err)
	h.graph = g
	return h
}

func (h *harness) step(t *testing.T, id flow.StageID, s *store.Session) (flow.Action, flow.StageID) {
	t.Helper()
	action, next, err := h.graph.Step(context.Background(), id, s)
	require.NoError(t, err)
	return action, next
}

func creds() *store.Credentials {
	return &store.Credentials{Username: "alice", Password: "s3cret"}
}

func scratchSession(t *testing.T, h *harness) *store.Session {
	t.Helper()
	s := store.NewSession("s1", store.NewInitialization(store.ScratchSource{}), creds())
	action, next := h.step(t, ScratchID, s)
	require.Equal(t, flow.ActionDefault, action)
	require.Equal(t, ChatID, next)
	return s
}

func remoteDoc(t *testing.T, id int64, name string) survey.Document {
	t.Helper()
	doc, err := survey.Parse([]byte(`{"id":` + jsonInt(id) + `,"name":"` + name + `","languages":["en"],"blocks":[{"name":"B1","questions":[]}],"choiceLists":[]}`))
	require.NoError(t, err)
	return doc
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decode(t *testing.T, doc survey.Document) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(doc, &out))
	return out
}

func TestRouterDispatch(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		src  store.Source
		want flow.Action
		next flow.StageID
	}{
		{"scratch", store.ScratchSource{}, ActionScratch, ScratchID},
		{"api", store.RemoteSource{SurveyID: 7}, ActionAPI, APIID},
		{"word", store.DocumentSource{Path: "x.docx", Base: store.LocalBase{}}, ActionWord, DocumentID},
		{"none", nil, flow.ActionError, ErrorID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewSession("r", store.NewInitialization(tt.src), nil)
			action, next := h.step(t, RouterID, s)
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.next, next)
			if tt.src == nil {
				assert.Contains(t, s.LastError, ErrNoInitialization.Error())
			}
		})
	}
}

func TestScratchInitialization(t *testing.T) {
	h := newHarness(t, nil)
	s := scratchSession(t, h)

	body := decode(t, s.Document)
	assert.Equal(t, []interface{}{}, body["blocks"])
	assert.Equal(t, []interface{}{"en"}, body["languages"])
	assert.Equal(t, survey.ScratchSurveyName, s.Document.Name())
	_, ok := s.RemoteID()
	assert.False(t, ok)
	assert.True(t, s.Init.Locked())
	assert.Empty(t, s.LastError)
}

func TestRemoteInitialization(t *testing.T) {
	t.Run("adopts the remote survey", func(t *testing.T) {
		h := newHarness(t, nil)
		h.gw.Surveys[42] = remoteDoc(t, 42, "Customer survey")
		s := store.NewSession("a", store.NewInitialization(store.RemoteSource{SurveyID: 42}), creds())

		action, next := h.step(t, APIID, s)
		assert.Equal(t, flow.ActionDefault, action)
		assert.Equal(t, ChatID, next)
		id, ok := s.RemoteID()
		assert.True(t, ok)
		assert.Equal(t, int64(42), id)
		assert.Equal(t, "Customer survey", s.Document.Name())
	})

	t.Run("missing credentials", func(t *testing.T) {
		h := newHarness(t, nil)
		s := store.NewSession("a", store.NewInitialization(store.RemoteSource{SurveyID: 42}), &store.Credentials{Username: "alice"})

		action, _ := h.step(t, APIID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.Contains(t, s.LastError, "API import failed")
		assert.Zero(t, h.gw.Logins)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		h := newHarness(t, nil)
		h.gw.Surveys[9] = survey.Document(`{"name":"broken"}`)
		s := store.NewSession("a", store.NewInitialization(store.RemoteSource{SurveyID: 9}), creds())

		action, _ := h.step(t, APIID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.True(t, s.Document.IsZero())
		_, ok := s.RemoteID()
		assert.False(t, ok)
		assert.False(t, s.Init.Locked())
	})

	t.Run("authentication rejected", func(t *testing.T) {
		h := newHarness(t, nil)
		h.gw.AuthErr = errors.New("bad credentials")
		s := store.NewSession("a", store.NewInitialization(store.RemoteSource{SurveyID: 1}), creds())

		action, _ := h.step(t, APIID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.Contains(t, s.LastError, "bad credentials")
	})
}

func TestDocumentInitialization(t *testing.T) {
	t.Run("local base", func(t *testing.T) {
		h := newHarness(t, nil)
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{Data: []byte("x"), Base: store.LocalBase{}}), nil)

		action, next := h.step(t, DocumentID, s)
		assert.Equal(t, ActionWordReady, action)
		assert.Equal(t, ImportID, next)
		assert.Equal(t, survey.DocumentSurveyName, s.Document.Name())
		assert.Equal(t, h.ext.Text, s.DocumentText)
		assert.Zero(t, h.gw.Creates())
		_, ok := s.RemoteID()
		assert.False(t, ok)
	})

	t.Run("new remote base", func(t *testing.T) {
		h := newHarness(t, nil)
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{
			Path: "q.docx",
			Base: store.NewRemoteBase{SurveyName: "Panel 2026"},
		}), creds())

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, ActionWordReady, action)
		assert.Equal(t, []string{"Panel 2026"}, h.gw.CreatedNames)
		id, ok := s.RemoteID()
		assert.True(t, ok)
		assert.Equal(t, int64(1000), id)
		assert.Equal(t, "Panel 2026", s.Document.Name())
	})

	t.Run("existing remote base", func(t *testing.T) {
		h := newHarness(t, nil)
		h.gw.Surveys[77] = remoteDoc(t, 77, "Existing")
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{
			Path: "q.docx",
			Base: store.ExistingRemoteBase{SurveyID: 77},
		}), creds())

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, ActionWordReady, action)
		assert.Equal(t, "Existing", s.Document.Name())
		id, _ := s.RemoteID()
		assert.Equal(t, int64(77), id)
		assert.Zero(t, h.gw.Creates())
	})

	t.Run("remote base without credentials", func(t *testing.T) {
		h := newHarness(t, nil)
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{
			Path: "q.docx",
			Base: store.NewRemoteBase{},
		}), nil)

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.Contains(t, s.LastError, ErrMissingCredentials.Error())
		assert.Zero(t, h.ext.Calls)
	})

	t.Run("extraction fails before any create", func(t *testing.T) {
		h := newHarness(t, nil)
		h.ext.Err = errors.New("corrupt docx")
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{
			Path: "q.docx",
			Base: store.NewRemoteBase{SurveyName: "X"},
		}), creds())

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.Zero(t, h.gw.Creates())
		assert.Contains(t, s.LastError, "Word document initialization failed")
	})

	t.Run("blank text", func(t *testing.T) {
		h := newHarness(t, nil)
		h.ext.Text = "  \n "
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{Data: []byte("x"), Base: store.LocalBase{}}), nil)

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.True(t, s.Document.IsZero())
	})

	t.Run("missing source", func(t *testing.T) {
		h := newHarness(t, nil)
		s := store.NewSession("w", store.NewInitialization(store.DocumentSource{Base: store.LocalBase{}}), nil)

		action, _ := h.step(t, DocumentID, s)
		assert.Equal(t, flow.ActionError, action)
		assert.Contains(t, s.LastError, ErrMissingSource.Error())
	})
}

func TestErrorStageSurfacesAndClears(t *testing.T) {
	h := newHarness(t, nil)
	s := store.NewSession("e", store.NewInitialization(nil), nil)
	s.Fail("API import failed: boom")

	action, next := h.step(t, ErrorID, s)
	assert.Equal(t, flow.ActionDefault, action)
	assert.Equal(t, ChatID, next)
	assert.Empty(t, s.LastError)
	notices := s.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, store.LevelError, notices[0].Level)
	assert.Equal(t, "API import failed: boom", notices[0].Message)

	h.step(t, ErrorID, s)
	notices = s.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, unknownError, notices[0].Message)
}

func TestGraphRejectsUnknownStage(t *testing.T) {
	h := newHarness(t, nil)
	_, _, err := h.graph.Step(context.Background(), "nowhere", store.NewSession("x", store.NewInitialization(nil), nil))
	assert.ErrorIs(t, err, flow.ErrUnknownStage)
}
