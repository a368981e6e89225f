package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Session   SessionConfig
	Voxco     VoxcoConfig
	Ai        AIConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	NatsURL            string
	ExportDir          string
	JWTSecret          string
	SessionTokenTTL    time.Duration
	AdminToken         string
	BodyLimitMB        int
}

type SessionConfig struct {
	IdleWindow    time.Duration
	SweepInterval time.Duration
}

// VoxcoConfig points at the survey platform. Username and Password are optional
// defaults for requests that carry no credentials of their own.
type VoxcoConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Username string
	Password string
}

type AIConfig struct {
	LLMProvider       string // "gemini", "openai", "huggingface" or "ollama"
	LLMModel          string
	OllamaBaseURL     string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	HuggingFaceAPIKey string
	Stream            bool // stream segmentation responses
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
	ServiceName  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			ExportDir:          getEnv("EXPORT_DIR", "output"),
			JWTSecret:          getEnv("JWT_SECRET", "change-me"),
			SessionTokenTTL:    getEnvAsDuration("SESSION_TOKEN_TTL", 24*time.Hour),
			AdminToken:         getEnv("ADMIN_TOKEN", ""),
			BodyLimitMB:        getEnvAsInt("BODY_LIMIT_MB", 50),
		},
		Session: SessionConfig{
			IdleWindow:    getEnvAsDuration("SESSION_IDLE_WINDOW", time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 15*time.Minute),
		},
		Voxco: VoxcoConfig{
			BaseURL:  getEnv("VOXCO_API_BASE_URL", ""),
			Timeout:  getEnvAsDuration("VOXCO_TIMEOUT", 30*time.Second),
			Username: getEnv("VOXCO_USERNAME", ""),
			Password: getEnv("VOXCO_PASSWORD", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:          getEnv("LLM_MODEL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			Stream:            getEnvAsBool("LLM_STREAM", false),
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "survey-assistant-backend"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "1h") and bare seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
