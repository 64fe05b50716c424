package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON    bool   `env:"LOG_JSON" env-default:"false"`

	RedisAddr   string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPass   string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB     int    `env:"REDIS_DB" env-default:"0"`
	WorkerCount int    `env:"WORKER_COUNT" env-default:"3"`

	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`

	JWTSecret          string `env:"JWT_SECRET_KEY" env-required:"true"`
	TokenLifetimeHours int    `env:"TOKEN_LIFETIME_HOURS" env-default:"72"`

	UploadDir     string `env:"UPLOAD_DIR" env-default:"uploads"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" env-default:"1073741824"` // 1GB

	// External AI services. MockAI swaps every collaborator for canned
	// implementations so the system runs without network access.
	MockAI             bool   `env:"MOCK_AI" env-default:"false"`
	DifyBaseURL        string `env:"DIFY_API_BASE_URL" env-default:""`
	DifyTranslatorKey  string `env:"DIFY_TRANSLATOR_API_KEY" env-default:""`
	DifySummarizerKey  string `env:"DIFY_SUMMARIZER_API_KEY" env-default:""`
	DifyExtractorKey   string `env:"DIFY_ACTION_EXTRACTOR_API_KEY" env-default:""`
	STTURL             string `env:"STT_URL" env-default:""`
	STTAPIKey          string `env:"STT_API_KEY" env-default:""`
	STTModel           string `env:"STT_MODEL" env-default:"whisper-1"`
	FFmpegBinary       string `env:"FFMPEG_BINARY" env-default:"ffmpeg"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
