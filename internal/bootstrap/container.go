package bootstrap

import (
	"context"
	"fmt"
	"log"

	"survey-assistant-be/internal/config"
	"survey-assistant-be/internal/controller"
	"survey-assistant-be/internal/pkg/logger"
	"survey-assistant-be/internal/repository/memory"
	"survey-assistant-be/internal/service"
	"survey-assistant-be/pkg/events"
	"survey-assistant-be/pkg/extract"
	"survey-assistant-be/pkg/llm"
	"survey-assistant-be/pkg/llm/factory"
	pktNats "survey-assistant-be/pkg/nats"
	"survey-assistant-be/pkg/store"
	"survey-assistant-be/pkg/survey/schema"
	"survey-assistant-be/pkg/surveybot"
	"survey-assistant-be/pkg/surveybot/stage"
	"survey-assistant-be/pkg/voxco"

	"github.com/ThreeDotsLabs/watermill"
)

type Container struct {
	// Controllers
	SurveyController controller.ISurveyController
	LogController    controller.ILogController

	// Exposed for the server's background loops
	SurveyService service.ISurveyService
	Logger        *logger.ZapLogger
	EventBus      *events.Bus
	// ConsumerService relays bus events to the log and to NATS.
	ConsumerService service.IConsumerService
	natsPub         *pktNats.Publisher
}

// Engine builds the stage engine the way both the REST server and the CLI need it.
func Engine(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger) (*surveybot.Engine, *schema.Validator, error) {
	llmProvider, err := factory.NewLLMProvider(ctx, factory.Config{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		GeminiAPIKey:  cfg.Ai.GeminiAPIKey,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,

		HuggingFaceAPIKey: cfg.Ai.HuggingFaceAPIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)
	validator, err := schema.New()
	if err != nil {
		return nil, nil, err
	}

	engine, err := surveybot.NewEngine(stage.Deps{
		LLM:                llm.NewTranscriptProvider(llmProvider, llmLogger),
		Gateway:            voxco.NewClient(cfg.Voxco.BaseURL, cfg.Voxco.Timeout),
		Extractor:          extract.New(),
		Schema:             validator,
		Log:                sysLogger,
		StreamSegmentation: cfg.Ai.Stream,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, validator, nil
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	// 2. Engine
	engine, validator, err := Engine(ctx, cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	// 3. Event Bus
	bus := events.NewBus(watermill.NewStdLogger(false, false))

	var natsPub *pktNats.Publisher
	var forward events.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		} else {
			forward = natsPub
		}
	}
	consumerService := service.NewConsumerService(bus, forward, sysLogger)

	// 4. Services
	sessionRepo := memory.NewSessionRepository(cfg.Session.IdleWindow, sysLogger)

	var defaultCreds *store.Credentials
	if cfg.Voxco.Username != "" {
		defaultCreds = &store.Credentials{Username: cfg.Voxco.Username, Password: cfg.Voxco.Password}
	}

	surveyService := service.NewSurveyService(engine, sessionRepo, validator, bus, sysLogger, service.SurveyServiceConfig{
		ExportDir:          cfg.App.ExportDir,
		DefaultCredentials: defaultCreds,
	})
	logService := service.NewLogService(sysLogger)

	// 5. Controllers
	return &Container{
		SurveyController: controller.NewSurveyController(surveyService, cfg.App.JWTSecret, cfg.App.SessionTokenTTL),
		LogController:    controller.NewLogController(logService, cfg.App.AdminToken),

		SurveyService: surveyService,
		Logger:        sysLogger,
		EventBus:      bus,

		ConsumerService: consumerService,
		natsPub:         natsPub,
	}, nil
}

// Close releases the bus and the NATS connection and flushes the logger.
func (c *Container) Close() {
	if err := c.EventBus.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	_ = c.Logger.Sync()
}
