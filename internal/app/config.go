package app

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment with an
// optional .env overlay for local runs.
type Config struct {
	LogMode     string   `envconfig:"LOG_MODE" default:"development"`
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	PublicURL   string   `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	JWTSecretKey string        `envconfig:"JWT_SECRET_KEY" default:"defaultsecret"`
	TokenTTL     time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`

	// standalone, broker or workflow
	EventExecutor      string `envconfig:"EVENT_EXECUTOR" default:"standalone"`
	NATSURL            string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	EventSubjectPrefix string `envconfig:"EVENT_SUBJECT_PREFIX" default:"events"`
	WorkerDurable      string `envconfig:"WORKER_DURABLE" default:"kairon-worker"`

	RedisAddr      string `envconfig:"REDIS_ADDR"`
	AgentCacheSize int    `envconfig:"AGENT_CACHE_SIZE" default:"32"`
	ModelDir       string `envconfig:"MODEL_DIR" default:"models"`
	WorkDir        string `envconfig:"WORK_DIR" default:"training_data"`

	TranslatorURL    string `envconfig:"TRANSLATOR_URL"`
	TranslatorAPIKey string `envconfig:"TRANSLATOR_API_KEY"`
}

func LoadConfig() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
