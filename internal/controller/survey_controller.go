package controller

import (
	"errors"
	"fmt"
	"io"
	"time"

	"survey-assistant-be/internal/dto"
	"survey-assistant-be/internal/pkg/serverutils"
	"survey-assistant-be/internal/repository/memory"
	"survey-assistant-be/internal/service"
	"survey-assistant-be/pkg/survey/schema"

	"github.com/gofiber/fiber/v2"
)

type ISurveyController interface {
	RegisterRoutes(r fiber.Router)
	Initialize(ctx *fiber.Ctx) error
	InitializeDocument(ctx *fiber.Ctx) error
	InitializeJSON(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	Save(ctx *fiber.Ctx) error
	GetSurvey(ctx *fiber.Ctx) error
	Export(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
}

type surveyController struct {
	service  service.ISurveyService
	secret   string
	tokenTTL time.Duration
}

func NewSurveyController(service service.ISurveyService, secret string, tokenTTL time.Duration) ISurveyController {
	return &surveyController{service: service, secret: secret, tokenTTL: tokenTTL}
}

func (c *surveyController) RegisterRoutes(r fiber.Router) {
	r.Post("/initialize", c.Initialize)
	r.Post("/initialize/document", c.InitializeDocument)
	r.Post("/initialize-json", c.InitializeJSON)

	auth := serverutils.SessionMiddleware(c.secret)
	r.Post("/chat", auth, c.Chat)
	r.Post("/save", auth, c.Save)
	r.Get("/survey", auth, c.GetSurvey)
	r.Post("/export", auth, c.Export)
	r.Delete("/session", auth, c.EndSession)
}

func (c *surveyController) Initialize(ctx *fiber.Ctx) error {
	var req dto.InitializeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.authorizeSession(ctx, req.SessionId); err != nil {
		return err
	}

	res, err := c.service.Initialize(ctx.Context(), &req)
	if err != nil {
		return toAppError(err)
	}
	return c.respondSession(ctx, res, "Survey initialized successfully")
}

func (c *surveyController) InitializeDocument(ctx *fiber.Ctx) error {
	var req dto.InitializeDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid form data")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return serverutils.NewBadRequest("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	if req.File, err = io.ReadAll(f); err != nil {
		return err
	}
	req.FileName = fh.Filename

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.authorizeSession(ctx, req.SessionId); err != nil {
		return err
	}

	res, err := c.service.InitializeDocument(ctx.Context(), &req)
	if err != nil {
		return toAppError(err)
	}
	return c.respondSession(ctx, res, "Document imported successfully")
}

func (c *surveyController) InitializeJSON(ctx *fiber.Ctx) error {
	var req dto.InitializeJSONRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if err := c.authorizeSession(ctx, req.SessionId); err != nil {
		return err
	}

	res, err := c.service.InitializeJSON(ctx.Context(), &req)
	if err != nil {
		return toAppError(err)
	}
	return c.respondSession(ctx, res, "Survey imported and initialized successfully")
}

func (c *surveyController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequest("Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Chat(ctx.Context(), sessionID(ctx), &req)
	if err != nil {
		return toAppError(err)
	}
	if res.Error != "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.FailureResponse(fiber.StatusBadRequest, res.Error, res))
	}
	return ctx.JSON(serverutils.SuccessResponse(res.Reply, res))
}

func (c *surveyController) Save(ctx *fiber.Ctx) error {
	res, err := c.service.Save(ctx.Context(), sessionID(ctx))
	if err != nil {
		return toAppError(err)
	}
	if res.Error != "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.FailureResponse(fiber.StatusBadRequest, res.Error, res))
	}
	return ctx.JSON(serverutils.SuccessResponse("Survey saved successfully", res))
}

func (c *surveyController) GetSurvey(ctx *fiber.Ctx) error {
	res, err := c.service.GetSurvey(ctx.Context(), sessionID(ctx))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Current survey", res))
}

func (c *surveyController) Export(ctx *fiber.Ctx) error {
	res, err := c.service.Export(ctx.Context(), sessionID(ctx))
	if err != nil {
		return toAppError(err)
	}
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, res.FileName))
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(res.Content)
}

func (c *surveyController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.Context(), sessionID(ctx)); err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session ended", nil))
}

// respondSession attaches a session token and reports failed initializations as 400
// while still returning the session, so the caller can retry with the same id.
func (c *surveyController) respondSession(ctx *fiber.Ctx, res *dto.SessionResponse, message string) error {
	token, err := serverutils.IssueSessionToken(c.secret, res.SessionId, c.tokenTTL)
	if err != nil {
		return err
	}
	res.SessionToken = token

	if res.Error != "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.FailureResponse(fiber.StatusBadRequest, res.Error, res))
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}

// authorizeSession lets an initialization reuse an existing session_id only with that
// session's own token.
func (c *surveyController) authorizeSession(ctx *fiber.Ctx, sessionId string) error {
	if sessionId == "" {
		return nil
	}
	id, err := serverutils.BearerSessionID(ctx, c.secret)
	if err != nil {
		return serverutils.NewAppError(fiber.StatusUnauthorized, "A session token is required to reuse session_id", err)
	}
	if id != sessionId {
		return serverutils.NewAppError(fiber.StatusUnauthorized, "Session token does not match session_id", nil)
	}
	return nil
}

func sessionID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(serverutils.SessionLocalKey).(string)
	return id
}

func toAppError(err error) error {
	var ve *schema.ValidationError
	switch {
	case errors.Is(err, memory.ErrSessionNotFound):
		return serverutils.NewAppError(fiber.StatusNotFound, "Session not found. Please initialize a survey first", err)
	case errors.Is(err, memory.ErrSessionBusy), errors.Is(err, service.ErrAlreadyInitialized):
		return serverutils.NewAppError(fiber.StatusConflict, "Session unavailable", err)
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrNotInitialized), errors.As(err, &ve):
		return serverutils.NewAppError(fiber.StatusBadRequest, "Request rejected", err)
	}
	return err
}
