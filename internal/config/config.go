// Package config provides configuration loading, defaults, and validation
// for the relay bot. Values come from an optional config.yaml overlaid with
// BOT_* environment variables; credentials are normally supplied through the
// environment (BOT_TELEGRAM_TOKEN, BOT_GEMINI_API_KEY).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Media     MediaConfig     `mapstructure:"media"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport settings.
type TelegramConfig struct {
	Token            string        `mapstructure:"token"              validate:"required"`
	MaxMessageLength int           `mapstructure:"max_message_length" validate:"min=1,max=4096"`
	TypingInterval   time.Duration `mapstructure:"typing_interval"    validate:"min=1s"`
}

// GeminiConfig holds inference engine settings.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"     validate:"required"`
	Model             string        `mapstructure:"model"       validate:"required"`
	Temperature       float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	Timeout           time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
}

// MediaConfig controls the transient download directory for attachments.
type MediaConfig struct {
	Dir              string        `mapstructure:"dir"                validate:"required"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes" validate:"min=1"`
	SweepMaxAge      time.Duration `mapstructure:"sweep_max_age"      validate:"min=1m"`
}

// MessagesConfig holds all user-visible bot texts.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required"`
	HistoryCleared string `mapstructure:"history_cleared" validate:"required"`
	ErrorGeneral   string `mapstructure:"error_general"   validate:"required"`
	ErrorImage     string `mapstructure:"error_image"     validate:"required"`
	ErrorDocument  string `mapstructure:"error_document"  validate:"required"`
	ErrorVoice     string `mapstructure:"error_voice"     validate:"required"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a named background task with a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from config.yaml (optional) and BOT_* environment
// variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Missing config file is fine: defaults plus environment variables.
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.json", false)

	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.max_message_length", 4000)
	viper.SetDefault("telegram.typing_interval", 5*time.Second)

	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.temperature", 1.0)
	viper.SetDefault("gemini.system_instruction", "")
	viper.SetDefault("gemini.timeout", 2*time.Minute)

	viper.SetDefault("media.dir", "temp_files")
	viper.SetDefault("media.max_download_bytes", 20*1024*1024)
	viper.SetDefault("media.sweep_max_age", time.Hour)

	viper.SetDefault("messages.welcome",
		"Hi! I'm a Gemini-powered bot.\n\n"+
			"I can:\n"+
			"📝 Chat and remember the conversation context\n"+
			"📷 Analyze images\n"+
			"📄 Read PDF and text documents\n"+
			"🎤 Understand voice messages\n\n"+
			"Commands:\n"+
			"/clear - clear the conversation history\n"+
			"/start - start over")
	viper.SetDefault("messages.history_cleared", "✅ Conversation history cleared!")
	viper.SetDefault("messages.error_general", "An error occurred. Please try again later.")
	viper.SetDefault("messages.error_image", "Failed to process the image. Please try again later.")
	viper.SetDefault("messages.error_document", "Failed to process the document. Please try again later.")
	viper.SetDefault("messages.error_voice", "Failed to process the voice message. Please try again later.")

	viper.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"media_sweep": {Enabled: true, Schedule: "0 * * * *"},
	})
}
