package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/internal/pkg/serverutils"
	"survey-assistant-be/internal/repository/memory"
	"survey-assistant-be/internal/service"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot"
	"survey-assistant-be/pkg/surveybot/stage"
	"survey-assistant-be/pkg/surveybot/stage/stagetest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newApp(t *testing.T, model *stagetest.LLM) *fiber.App {
	t.Helper()
	log := logger.NewNopLogger()
	v := schema.MustNew()
	engine, err := surveybot.NewEngine(stage.Deps{
		LLM:       model,
		Gateway:   stagetest.NewGateway(),
		Extractor: &stagetest.Extractor{Text: "Q1 Age?"},
		Schema:    v,
		Log:       log,
	})
	require.NoError(t, err)

	svc := service.NewSurveyService(engine, memory.NewSessionRepository(time.Hour, log), v, nil, log,
		service.SurveyServiceConfig{ExportDir: t.TempDir()})

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewSurveyController(svc, secret, time.Hour).RegisterRoutes(api)
	NewLogController(service.NewLogService(log), "admin").RegisterRoutes(api)
	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, envelope, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	_ = json.Unmarshal(body, &env)
	return resp.StatusCode, env, body
}

func jsonRequest(method, path, token string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func initScratch(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, env, _ := do(t, app, jsonRequest("POST", "/api/initialize", "", map[string]interface{}{
		"initialization_type": "scratch",
		"username":            "alice",
		"password":            "pw",
	}))
	require.Equal(t, fiber.StatusOK, status)
	var data struct {
		SessionToken string `json:"session_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.SessionToken)
	return data.SessionToken
}

func TestInitializeAndChat(t *testing.T) {
	app := newApp(t, stagetest.Replies(`{"action":"modify","patch":[{"op":"replace","path":"/name","value":"My Survey"}]}`))
	token := initScratch(t, app)

	status, env, _ := do(t, app, jsonRequest("POST", "/api/chat", token, map[string]string{"message": "rename survey to My Survey"}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"My Survey"`)

	status, env, _ = do(t, app, jsonRequest("GET", "/api/survey", token, nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"My Survey"`)
}

func TestInitializeValidation(t *testing.T) {
	app := newApp(t, stagetest.Replies())

	status, _, _ := do(t, app, jsonRequest("POST", "/api/initialize", "", map[string]string{"initialization_type": "fax"}))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env, _ := do(t, app, jsonRequest("POST", "/api/initialize", "", map[string]interface{}{
		"initialization_type":   "api",
		"initialization_source": 12,
	}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "credentials")
	assert.Contains(t, string(env.Data), "session_token")
}

func TestSessionRoutesRequireToken(t *testing.T) {
	app := newApp(t, stagetest.Replies())

	status, _, _ := do(t, app, jsonRequest("POST", "/api/chat", "", map[string]string{"message": "hi"}))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token, err := serverutils.IssueSessionToken(secret, "gone", time.Hour)
	require.NoError(t, err)
	status, _, _ = do(t, app, jsonRequest("POST", "/api/chat", token, map[string]string{"message": "hi"}))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestChatRequiresMessage(t *testing.T) {
	app := newApp(t, stagetest.Replies())
	token := initScratch(t, app)

	status, _, _ := do(t, app, jsonRequest("POST", "/api/chat", token, map[string]string{"message": ""}))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestExportAttachment(t *testing.T) {
	app := newApp(t, stagetest.Replies())
	token := initScratch(t, app)

	resp, err := app.Test(jsonRequest("POST", "/api/export", token, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Regexp(t, `attachment; filename="survey_local_\d+\.json"`, resp.Header.Get("Content-Disposition"))
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, json.Valid(body))
}

func TestInitializeJSONEndpoint(t *testing.T) {
	app := newApp(t, stagetest.Replies())

	status, env, _ := do(t, app, jsonRequest("POST", "/api/initialize-json", "", map[string]interface{}{
		"survey_json": map[string]interface{}{"name": "Up", "languages": []string{"en"}, "blocks": []interface{}{}},
	}))
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env, _ = do(t, app, jsonRequest("POST", "/api/initialize-json", "", map[string]interface{}{
		"survey_json": map[string]interface{}{"blocks": "nope"},
	}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, env.Message, "/blocks")
}

func TestInitializeDocumentUpload(t *testing.T) {
	app := newApp(t, stagetest.Replies(`[]`))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("base", "local"))
	part, err := w.CreateFormFile("file", "q.docx")
	require.NoError(t, err)
	_, _ = part.Write([]byte("fake"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/initialize/document", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, env, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"Survey from Word"`)
}

func TestAdminLogsRequireToken(t *testing.T) {
	app := newApp(t, stagetest.Replies())

	status, _, _ := do(t, app, httptest.NewRequest("GET", "/api/admin/logs", nil))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req := httptest.NewRequest("GET", "/api/admin/logs", nil)
	req.Header.Set("X-Admin-Token", "admin")
	status, env, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
}

func TestInitializeRejectsWordByPath(t *testing.T) {
	model := stagetest.Replies()
	app := newApp(t, model)

	status, _, _ := do(t, app, jsonRequest("POST", "/api/initialize", "", map[string]interface{}{
		"initialization_type":   "word",
		"initialization_source": "/etc/passwd",
	}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Zero(t, model.Calls())
}

func TestReusingSessionIdRequiresItsToken(t *testing.T) {
	app := newApp(t, stagetest.Replies())

	status, env, _ := do(t, app, jsonRequest("POST", "/api/initialize", "", map[string]interface{}{
		"initialization_type":   "api",
		"initialization_source": 12,
	}))
	require.Equal(t, fiber.StatusBadRequest, status)
	var failed struct {
		SessionId    string `json:"session_id"`
		SessionToken string `json:"session_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &failed))
	require.NotEmpty(t, failed.SessionId)

	retry := map[string]interface{}{
		"session_id":          failed.SessionId,
		"initialization_type": "scratch",
	}

	status, _, _ = do(t, app, jsonRequest("POST", "/api/initialize", "", retry))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	other, err := serverutils.IssueSessionToken(secret, "someone-else", time.Hour)
	require.NoError(t, err)
	status, _, _ = do(t, app, jsonRequest("POST", "/api/initialize", other, retry))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _, _ = do(t, app, jsonRequest("POST", "/api/initialize-json", "", map[string]interface{}{
		"session_id":  failed.SessionId,
		"survey_json": map[string]interface{}{"name": "Up", "languages": []string{"en"}, "blocks": []interface{}{}},
	}))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, env, _ = do(t, app, jsonRequest("POST", "/api/initialize", failed.SessionToken, retry))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), failed.SessionId)
}
