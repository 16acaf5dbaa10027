package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	JWT      JWTConfig
	Telegram TelegramConfig
	AI       AIConfig
	Dialog   DialogConfig
	Dedup    DedupConfig
	Storage  StorageConfig
	Speech   SpeechConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

type LogConfig struct {
	Format string
	Level  string
}

type JWTConfig struct {
	SecretKey string
}

type TelegramConfig struct {
	BotToken      string
	BotUsername   string
	WebhookSecret string
}

type AIConfig struct {
	Provider         string
	GeminiModel      string
	ClaudeModel      string
	GlobalAPIKey     string
	EncryptionSecret string
	Timeout          time.Duration
}

type DialogConfig struct {
	TTL time.Duration
}

type DedupConfig struct {
	Backend  string
	Capacity int
	TTL      time.Duration
}

type StorageConfig struct {
	ReceiptBucket string
}

type SpeechConfig struct {
	Enabled      bool
	LanguageCode string
}

var envBindings = map[string]string{
	"server.port":            "PORT",
	"server.read_timeout":    "SERVER_READ_TIMEOUT",
	"server.write_timeout":   "SERVER_WRITE_TIMEOUT",
	"server.request_timeout": "SERVER_REQUEST_TIMEOUT",

	"log.format": "LOG_FORMAT",
	"log.level":  "LOG_LEVEL",

	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"jwt.secret_key": "JWT_SECRET_KEY",

	"telegram.bot_token":      "TELEGRAM_BOT_TOKEN",
	"telegram.bot_username":   "TELEGRAM_BOT_USERNAME",
	"telegram.webhook_secret": "TELEGRAM_WEBHOOK_SECRET",

	"ai.provider":          "AI_PROVIDER",
	"ai.gemini_model":      "GEMINI_MODEL",
	"ai.claude_model":      "CLAUDE_MODEL",
	"ai.global_api_key":    "AI_API_KEY",
	"ai.encryption_secret": "ENCRYPTION_SECRET",
	"ai.timeout":           "AI_TIMEOUT",

	"dialog.ttl": "DIALOG_TTL",

	"dedup.backend":  "DEDUP_BACKEND",
	"dedup.capacity": "DEDUP_CAPACITY",
	"dedup.ttl":      "DEDUP_TTL",

	"storage.receipt_bucket": "RECEIPT_BUCKET",

	"speech.enabled":       "SPEECH_ENABLED",
	"speech.language_code": "SPEECH_LANGUAGE_CODE",
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 90*time.Second)
	viper.SetDefault("server.request_timeout", 60*time.Second)

	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.level", "info")

	viper.SetDefault("telegram.bot_username", "DuweKuBot")

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini_model", "gemini-1.5-flash")
	viper.SetDefault("ai.claude_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("ai.timeout", 30*time.Second)

	viper.SetDefault("dialog.ttl", 15*time.Minute)

	viper.SetDefault("dedup.backend", "postgres")
	viper.SetDefault("dedup.capacity", 100)
	viper.SetDefault("dedup.ttl", 24*time.Hour)

	viper.SetDefault("speech.enabled", false)
	viper.SetDefault("speech.language_code", "id-ID")
}

// Load reads .env (when present) and the environment into a Config.
// Environment variables win over the file.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Debug().Err(err).Msg("Config file not found, using environment and defaults")
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			ReadTimeout:    viper.GetDuration("server.read_timeout"),
			WriteTimeout:   viper.GetDuration("server.write_timeout"),
			RequestTimeout: viper.GetDuration("server.request_timeout"),
		},
		Log: LogConfig{
			Format: viper.GetString("log.format"),
			Level:  viper.GetString("log.level"),
		},
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
		},
		Telegram: TelegramConfig{
			BotToken:      viper.GetString("telegram.bot_token"),
			BotUsername:   viper.GetString("telegram.bot_username"),
			WebhookSecret: viper.GetString("telegram.webhook_secret"),
		},
		AI: AIConfig{
			Provider:         viper.GetString("ai.provider"),
			GeminiModel:      viper.GetString("ai.gemini_model"),
			ClaudeModel:      viper.GetString("ai.claude_model"),
			GlobalAPIKey:     viper.GetString("ai.global_api_key"),
			EncryptionSecret: viper.GetString("ai.encryption_secret"),
			Timeout:          viper.GetDuration("ai.timeout"),
		},
		Dialog: DialogConfig{
			TTL: viper.GetDuration("dialog.ttl"),
		},
		Dedup: DedupConfig{
			Backend:  viper.GetString("dedup.backend"),
			Capacity: viper.GetInt("dedup.capacity"),
			TTL:      viper.GetDuration("dedup.ttl"),
		},
		Storage: StorageConfig{
			ReceiptBucket: viper.GetString("storage.receipt_bucket"),
		},
		Speech: SpeechConfig{
			Enabled:      viper.GetBool("speech.enabled"),
			LanguageCode: viper.GetString("speech.language_code"),
		},
	}
}
