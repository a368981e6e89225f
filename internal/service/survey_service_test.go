package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"survey-assistant-be/internal/dto"
	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/internal/repository/memory"
	"survey-assistant-be/pkg/events"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot"
	"survey-assistant-be/pkg/surveybot/stage"
	"survey-assistant-be/pkg/surveybot/stage/stagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.EventType())
	return nil
}

func (p *recordingPublisher) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type fixture struct {
	svc      ISurveyService
	llm      *stagetest.LLM
	gw       *stagetest.Gateway
	sessions *memory.SessionRepository
	pub      *recordingPublisher
	dir      string
}

func newFixture(t *testing.T, model *stagetest.LLM) *fixture {
	t.Helper()
	if model == nil {
		model = stagetest.Replies()
	}
	log := logger.NewNopLogger()
	v := schema.MustNew()
	gw := stagetest.NewGateway()
	engine, err := surveybot.NewEngine(stage.Deps{
		LLM:       model,
		Gateway:   gw,
		Extractor: &stagetest.Extractor{Text: "Q1 Age?"},
		Schema:    v,
		Log:       log,
	})
	require.NoError(t, err)

	f := &fixture{
		llm:      model,
		gw:       gw,
		sessions: memory.NewSessionRepository(time.Hour, log),
		pub:      &recordingPublisher{},
		dir:      t.TempDir(),
	}
	f.svc = NewSurveyService(engine, f.sessions, v, f.pub, log, SurveyServiceConfig{ExportDir: f.dir})
	return f
}

func (f *fixture) scratch(t *testing.T) *dto.SessionResponse {
	t.Helper()
	resp, err := f.svc.Initialize(context.Background(), &dto.InitializeRequest{
		InitializationType: "scratch",
		Username:           "alice",
		Password:           "pw",
	})
	require.NoError(t, err)
	require.True(t, resp.Initialized)
	return resp
}

func TestInitializeScratch(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.scratch(t)

	assert.NotEmpty(t, resp.SessionId)
	assert.Nil(t, resp.RemoteSurveyId)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{events.SurveyInitialized}, f.pub.seen())

	_, err := f.svc.Initialize(context.Background(), &dto.InitializeRequest{
		SessionId:          resp.SessionId,
		InitializationType: "scratch",
	})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitializeRemoteFailureCanBeRetried(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Initialize(ctx, &dto.InitializeRequest{
		InitializationType:   "api",
		InitializationSource: json.RawMessage(`"42"`),
		Username:             "alice",
		Password:             "pw",
	})
	require.NoError(t, err)
	assert.False(t, resp.Initialized)
	assert.Contains(t, resp.Error, "API import failed")

	doc := []byte(`{"id":42,"name":"Remote","languages":["en"],"blocks":[]}`)
	f.gw.Surveys[42] = doc

	resp, err = f.svc.Initialize(ctx, &dto.InitializeRequest{
		SessionId:            resp.SessionId,
		InitializationType:   "api",
		InitializationSource: json.RawMessage(`42`),
		Username:             "alice",
		Password:             "pw",
	})
	require.NoError(t, err)
	assert.True(t, resp.Initialized)
	require.NotNil(t, resp.RemoteSurveyId)
	assert.Equal(t, int64(42), *resp.RemoteSurveyId)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestInitializeRejectsBadSource(t *testing.T) {
	f := newFixture(t, nil)
	for _, raw := range []string{``, `"abc"`, `-3`, `{}`} {
		_, err := f.svc.Initialize(context.Background(), &dto.InitializeRequest{
			InitializationType:   "api",
			InitializationSource: json.RawMessage(raw),
		})
		assert.ErrorIs(t, err, ErrInvalidRequest, raw)
	}
}

func TestInitializeRejectsDocumentPath(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Initialize(context.Background(), &dto.InitializeRequest{
		InitializationType:   "word",
		InitializationSource: json.RawMessage(`"/etc/passwd"`),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, f.llm.Calls())
	assert.Zero(t, f.sessions.Len())
	assert.Empty(t, f.pub.seen())
}

func TestInitializeDocumentPublishesImport(t *testing.T) {
	model := stagetest.Replies(`[{"type":"question","content":"Q1 Age?"}]`,
		`[{"op":"add","path":"/blocks/-","value":{"name":"B","questions":[{"name":"AGE","type":"numeric"}]}}]`)
	f := newFixture(t, model)

	resp, err := f.svc.InitializeDocument(context.Background(), &dto.InitializeDocumentRequest{
		FileName: "q.docx",
		File:     []byte("docx"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Initialized)
	assert.Contains(t, string(resp.Survey), `"AGE"`)
	assert.Equal(t, []string{events.SurveyInitialized, events.SurveyImportCompleted}, f.pub.seen())
}

func TestInitializeJSON(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.InitializeJSON(ctx, &dto.InitializeJSONRequest{
		SurveyJson: json.RawMessage(`{"id":99,"name":"Uploaded","languages":["en"],"blocks":[]}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.Initialized)
	assert.Nil(t, resp.RemoteSurveyId)
	assert.Contains(t, string(resp.Survey), `"id":null`)

	_, err = f.svc.InitializeJSON(ctx, &dto.InitializeJSONRequest{
		SurveyJson: json.RawMessage(`{"name":"No languages","blocks":[]}`),
	})
	var ve *schema.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = f.svc.InitializeJSON(ctx, &dto.InitializeJSONRequest{SurveyJson: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestChatModifySaveExit(t *testing.T) {
	model := stagetest.Replies(
		`{"action":"modify","patch":[{"op":"replace","path":"/name","value":"My Survey"}]}`,
		`{"action":"display","content":"One survey, no blocks."}`,
	)
	f := newFixture(t, model)
	ctx := context.Background()
	id := f.scratch(t).SessionId

	resp, err := f.svc.Chat(ctx, id, &dto.ChatRequest{Message: "rename survey to My Survey"})
	require.NoError(t, err)
	assert.Equal(t, "modify_survey", resp.Action)
	assert.Equal(t, "Survey updated.", resp.Reply)
	assert.Contains(t, string(resp.Survey), `"My Survey"`)

	resp, err = f.svc.Chat(ctx, id, &dto.ChatRequest{Message: "describe it"})
	require.NoError(t, err)
	assert.Equal(t, "One survey, no blocks.", resp.Reply)

	resp, err = f.svc.Chat(ctx, id, &dto.ChatRequest{Message: "save"})
	require.NoError(t, err)
	assert.Equal(t, "save_survey", resp.Action)
	assert.Equal(t, store.SaveSucceeded, resp.SaveStatus)
	require.NotNil(t, resp.RemoteSurveyId)
	assert.Equal(t, []string{"My Survey"}, f.gw.CreatedNames)

	resp, err = f.svc.Chat(ctx, id, &dto.ChatRequest{Message: "exit"})
	require.NoError(t, err)
	assert.True(t, resp.Exited)
	_, err = f.svc.GetSurvey(ctx, id)
	assert.ErrorIs(t, err, memory.ErrSessionNotFound)

	assert.Equal(t, []string{
		events.SurveyInitialized,
		events.SurveyModified,
		events.SurveySaved,
	}, f.pub.seen())
	assert.Equal(t, 2, model.Calls())
}

func TestSaveWithoutCredentialsReportsError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	resp, err := f.svc.Initialize(ctx, &dto.InitializeRequest{InitializationType: "scratch"})
	require.NoError(t, err)

	saved, err := f.svc.Save(ctx, resp.SessionId)
	require.NoError(t, err)
	assert.Equal(t, store.SaveFailed, saved.SaveStatus)
	assert.Contains(t, saved.Error, "Failed to save survey")
	assert.Zero(t, f.gw.Creates())
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	id := f.scratch(t).SessionId
	svc := f.svc.(*surveyService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000123) }

	out, err := f.svc.Export(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "survey_local_1700000000123.json", out.FileName)
	assert.Equal(t, filepath.Join(f.dir, out.FileName), out.Path)

	written, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, out.Content, written)
	assert.Contains(t, string(written), "\n  \"languages\"")
}

func TestSessionErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Chat(ctx, "missing", &dto.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, memory.ErrSessionNotFound)

	resp, err := f.svc.Initialize(ctx, &dto.InitializeRequest{InitializationType: "api", InitializationSource: json.RawMessage(`5`)})
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, resp.SessionId, &dto.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, f.svc.EndSession(ctx, resp.SessionId))
	assert.Zero(t, f.sessions.Len())
}

func TestSweepIdlePublishesExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.scratch(t)

	removed := f.svc.SweepIdle(context.Background(), time.Now().Add(2*time.Hour))
	assert.Equal(t, 1, removed)
	assert.Contains(t, f.pub.seen(), events.SessionExpired)
}
