package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"survey-assistant-be/internal/dto"
	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/internal/repository/memory"
	"survey-assistant-be/pkg/events"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot"
	"survey-assistant-be/pkg/surveybot/flow"
	"survey-assistant-be/pkg/surveybot/stage"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrNotInitialized     = errors.New("survey not initialized, please initialize a survey first")
)

const defaultChatReply = "Changes applied successfully"

type ISurveyService interface {
	Initialize(ctx context.Context, req *dto.InitializeRequest) (*dto.SessionResponse, error)
	InitializeDocument(ctx context.Context, req *dto.InitializeDocumentRequest) (*dto.SessionResponse, error)
	InitializeJSON(ctx context.Context, req *dto.InitializeJSONRequest) (*dto.SessionResponse, error)
	Chat(ctx context.Context, sessionId string, req *dto.ChatRequest) (*dto.ChatResponse, error)
	Save(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	GetSurvey(ctx context.Context, sessionId string) (*dto.SurveyResponse, error)
	Export(ctx context.Context, sessionId string) (*dto.ExportResponse, error)
	EndSession(ctx context.Context, sessionId string) error
	SweepIdle(ctx context.Context, now time.Time) int
}

type SurveyServiceConfig struct {
	ExportDir string
	// DefaultCredentials are used when a request carries none.
	DefaultCredentials *store.Credentials
}

type surveyService struct {
	engine    *surveybot.Engine
	sessions  *memory.SessionRepository
	validator *schema.Validator
	publisher events.Publisher
	logger    logger.ILogger
	cfg       SurveyServiceConfig
	now       func() time.Time
}

func NewSurveyService(
	engine *surveybot.Engine,
	sessions *memory.SessionRepository,
	validator *schema.Validator,
	publisher events.Publisher,
	logger logger.ILogger,
	cfg SurveyServiceConfig,
) ISurveyService {
	return &surveyService{
		engine:    engine,
		sessions:  sessions,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *surveyService) Initialize(ctx context.Context, req *dto.InitializeRequest) (*dto.SessionResponse, error) {
	src, err := initializationSource(req)
	if err != nil {
		return nil, err
	}
	return s.initialize(ctx, req.SessionId, src, s.credentials(req.Username, req.Password))
}

func (s *surveyService) InitializeDocument(ctx context.Context, req *dto.InitializeDocumentRequest) (*dto.SessionResponse, error) {
	if len(req.File) == 0 {
		return nil, fmt.Errorf("%w: an uploaded document is required", ErrInvalidRequest)
	}
	src := store.DocumentSource{
		Data:     req.File,
		FileName: req.FileName,
		Base:     documentBase(req.Base, req.BaseSurveyId, req.SurveyName),
	}
	return s.initialize(ctx, req.SessionId, src, s.credentials(req.Username, req.Password))
}

// InitializeJSON adopts a complete survey supplied by the caller. Its id is dropped: the
// session has no remote identity until the first save.
func (s *surveyService) InitializeJSON(ctx context.Context, req *dto.InitializeJSONRequest) (*dto.SessionResponse, error) {
	doc, err := survey.Parse(req.SurveyJson)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	doc, err = doc.WithoutID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.validator.Validate(doc); err != nil {
		return nil, err
	}

	sess, release, err := s.openSession(req.SessionId, store.UploadSource{FileName: req.FileName}, s.credentials(req.Username, req.Password))
	if err != nil {
		return nil, err
	}
	defer release()

	sess.SetDocument(doc)
	sess.ClearError()
	sess.Init.Lock()
	sess.Notify(store.LevelInfo, "Survey imported and initialized successfully")

	s.logger.Info("SURVEY", "Survey initialized from uploaded JSON", map[string]interface{}{
		"session_id": sess.ID,
		"name":       doc.Name(),
	})
	s.publish(ctx, events.SurveyInitialized, sess, nil)
	return s.sessionResponse(sess), nil
}

func (s *surveyService) initialize(ctx context.Context, sessionId string, src store.Source, creds *store.Credentials) (*dto.SessionResponse, error) {
	sess, release, err := s.openSession(sessionId, src, creds)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("SURVEY", "[PHASE 1] Initialization requested", map[string]interface{}{
		"session_id": sess.ID,
		"kind":       sess.Init.Kind,
		"base":       baseName(src),
	})

	if _, err := s.engine.Advance(ctx, sess, stage.RouterID); err != nil {
		return nil, err
	}

	resp := s.sessionResponse(sess)
	if !sess.Init.Locked() {
		return resp, nil
	}

	s.publish(ctx, events.SurveyInitialized, sess, map[string]interface{}{"base": baseName(src)})
	if sess.Init.Kind == store.KindWord {
		s.publish(ctx, events.SurveyImportCompleted, sess, map[string]interface{}{
			"skipped_chunks": len(sess.ImportErrors),
		})
	}
	return resp, nil
}

// openSession returns a locked session for an initialization: a new one, or an existing
// one whose earlier initialization failed.
func (s *surveyService) openSession(sessionId string, src store.Source, creds *store.Credentials) (*store.Session, func(), error) {
	if sessionId != "" {
		sess, release, err := s.sessions.Acquire(sessionId)
		if err == nil {
			if sess.Init.Locked() {
				release()
				return nil, nil, ErrAlreadyInitialized
			}
			sess.Init = store.NewInitialization(src)
			sess.Credentials = creds
			return sess, release, nil
		}
		if !errors.Is(err, memory.ErrSessionNotFound) {
			return nil, nil, err
		}
	}

	sess := store.NewSession(uuid.NewString(), store.NewInitialization(src), creds)
	s.sessions.Save(sess)
	acquired, release, err := s.sessions.Acquire(sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return acquired, release, nil
}

func (s *surveyService) Chat(ctx context.Context, sessionId string, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	sess, release, err := s.initializedSession(sessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	before := sess.Document
	saveBefore := sess.SaveStatus
	sess.SaveStatus = store.SaveUnset
	sess.PendingMessage = req.Message

	at, err := s.engine.Advance(ctx, sess, stage.ChatID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ChatResponse{SessionResponse: *s.sessionResponse(sess)}
	resp.Exited = at == flow.End
	switch {
	case resp.Exited:
		resp.Action = string(flow.ActionExit)
	case sess.SaveStatus != store.SaveUnset:
		resp.Action = string(stage.ActionSave)
	default:
		resp.Action = string(stage.ActionModify)
	}

	resp.Reply = sess.LastDisplay
	if resp.Reply == "" {
		resp.Reply = replyFromNotices(resp.Notices)
	}

	if !before.Equal(sess.Document) {
		s.publish(ctx, events.SurveyModified, sess, nil)
	}
	if sess.SaveStatus == store.SaveSucceeded {
		s.publish(ctx, events.SurveySaved, sess, nil)
	}
	if sess.SaveStatus == store.SaveUnset {
		sess.SaveStatus = saveBefore
	}
	if resp.Exited {
		s.sessions.Delete(sess.ID)
		s.logger.Info("SURVEY", "Session ended by user", map[string]interface{}{"session_id": sess.ID})
	}
	return resp, nil
}

func (s *surveyService) Save(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	sess, release, err := s.initializedSession(sessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	action, err := s.engine.RunSave(ctx, sess)
	if err != nil {
		return nil, err
	}
	if action == flow.ActionError {
		if _, err := s.engine.RunError(ctx, sess); err != nil {
			return nil, err
		}
	} else {
		s.publish(ctx, events.SurveySaved, sess, nil)
	}
	return s.sessionResponse(sess), nil
}

func (s *surveyService) GetSurvey(ctx context.Context, sessionId string) (*dto.SurveyResponse, error) {
	sess, release, err := s.sessions.Acquire(sessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	return &dto.SurveyResponse{
		SessionId:      sess.ID,
		RemoteSurveyId: remoteID(sess),
		Survey:         sess.Document,
	}, nil
}

func (s *surveyService) Export(ctx context.Context, sessionId string) (*dto.ExportResponse, error) {
	sess, release, err := s.initializedSession(sessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok := sess.RemoteID()
	if !ok {
		id, ok = sess.Document.ID()
	}
	name := survey.ExportFileName(id, ok, s.now())
	path, content, err := survey.Export(s.cfg.ExportDir, name, sess.Document)
	if err != nil {
		return nil, err
	}

	s.logger.Info("SURVEY", "Survey exported", map[string]interface{}{
		"session_id": sess.ID,
		"path":       path,
	})
	return &dto.ExportResponse{FileName: name, Path: path, Content: content}, nil
}

func (s *surveyService) EndSession(ctx context.Context, sessionId string) error {
	_, release, err := s.sessions.Acquire(sessionId)
	if err != nil {
		return err
	}
	s.sessions.Delete(sessionId)
	release()
	return nil
}

// SweepIdle drops idle sessions and announces each one.
func (s *surveyService) SweepIdle(ctx context.Context, now time.Time) int {
	removed := s.sessions.Sweep(now)
	for _, id := range removed {
		s.publishEvent(ctx, events.New(events.SessionExpired, map[string]interface{}{"session_id": id}))
	}
	return len(removed)
}

func (s *surveyService) initializedSession(sessionId string) (*store.Session, func(), error) {
	sess, release, err := s.sessions.Acquire(sessionId)
	if err != nil {
		return nil, nil, err
	}
	if sess.Document.IsZero() {
		release()
		return nil, nil, ErrNotInitialized
	}
	return sess, release, nil
}

func (s *surveyService) credentials(username, password string) *store.Credentials {
	if username != "" || password != "" {
		return &store.Credentials{Username: username, Password: password}
	}
	if s.cfg.DefaultCredentials != nil {
		c := *s.cfg.DefaultCredentials
		return &c
	}
	return nil
}

func (s *surveyService) sessionResponse(sess *store.Session) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		SessionId:      sess.ID,
		Initialization: sess.Init,
		Initialized:    sess.Init.Locked(),
		RemoteSurveyId: remoteID(sess),
		Survey:         sess.Document,
		SaveStatus:     sess.SaveStatus,
		ImportErrors:   sess.ImportErrors,
		Notices:        sess.DrainNotices(),
	}
	if resp.Notices == nil {
		resp.Notices = []store.Notice{}
	}
	for _, n := range resp.Notices {
		if n.Level == store.LevelError {
			resp.Error = n.Message
		}
	}
	return resp
}

func (s *surveyService) publish(ctx context.Context, eventType string, sess *store.Session, extra map[string]interface{}) {
	data := map[string]interface{}{
		"session_id": sess.ID,
		"kind":       string(sess.Init.Kind),
		"name":       sess.Document.Name(),
	}
	if id, ok := sess.RemoteID(); ok {
		data["remote_survey_id"] = id
	}
	for k, v := range extra {
		data[k] = v
	}
	s.publishEvent(ctx, events.New(eventType, data))
}

func (s *surveyService) publishEvent(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("SURVEY", "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
	}
}

func initializationSource(req *dto.InitializeRequest) (store.Source, error) {
	switch req.InitializationType {
	case string(store.KindScratch):
		return store.ScratchSource{}, nil
	case string(store.KindAPI):
		id, err := surveyID(req.InitializationSource)
		if err != nil {
			return nil, err
		}
		return store.RemoteSource{SurveyID: id}, nil
	case string(store.KindWord):
		return nil, fmt.Errorf("%w: documents must be uploaded to /api/initialize/document", ErrInvalidRequest)
	}
	return nil, fmt.Errorf("%w: unknown initialization_type %q", ErrInvalidRequest, req.InitializationType)
}

// surveyID accepts a JSON number or a numeric string.
func surveyID(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return 0, fmt.Errorf("%w: initialization_source must be a survey id", ErrInvalidRequest)
		}
		n = json.Number(strings.TrimSpace(str))
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: initialization_source must be a positive survey id", ErrInvalidRequest)
	}
	return id, nil
}

// documentBase defaults to a local base when no strategy is named.
func documentBase(base string, surveyId int64, surveyName string) store.Base {
	switch base {
	case "new":
		return store.NewRemoteBase{SurveyName: surveyName}
	case "existing":
		return store.ExistingRemoteBase{SurveyID: surveyId}
	default:
		return store.LocalBase{}
	}
}

func baseName(src store.Source) string {
	if d, ok := src.(store.DocumentSource); ok {
		return store.BaseName(d.Base)
	}
	return ""
}

func remoteID(sess *store.Session) *int64 {
	if id, ok := sess.RemoteID(); ok {
		return &id
	}
	return nil
}

func replyFromNotices(notices []store.Notice) string {
	for i := len(notices) - 1; i >= 0; i-- {
		if notices[i].Level != store.LevelInfo {
			return notices[i].Message
		}
	}
	if len(notices) > 0 {
		return notices[len(notices)-1].Message
	}
	return defaultChatReply
}
