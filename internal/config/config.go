package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	FormatOpenRouter = "openrouter"
	FormatGemini     = "gemini"

	PlanFilename = "shot_plan.json"
	MaxPanels    = 6
)

var ErrMissingAPIKey = errors.New("IMAGE_API_KEY (or OPENROUTER_API_KEY / GEMINI_API_KEY) is required")

type Config struct {
	APIKey    string
	APIFormat string
	APIURL    string
	Model     string

	LogLevel  string
	LogFormat string

	PreferIPv4  bool
	HTTPTimeout time.Duration

	Retries    int
	RetryDelay time.Duration

	WorkDir     string
	PresetsFile string

	FFmpegPath         string
	VideoFPS           int
	VideoWidth         int
	VideoHeight        int
	PanelDuration      time.Duration
	TransitionDuration time.Duration

	TelegramToken  string
	TelegramChatID int64
}

func Load() (Config, error) {
	cfg := Config{
		APIFormat:          strings.ToLower(getEnv("IMAGE_API_FORMAT", FormatOpenRouter)),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 120)) * time.Second,
		Retries:            getEnvInt("GENERATE_RETRIES", 3),
		RetryDelay:         time.Duration(getEnvInt("RETRY_DELAY_SECONDS", 5)) * time.Second,
		WorkDir:            getEnv("WORK_DIR", ""),
		PresetsFile:        getEnv("PRESETS_FILE", ""),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		VideoFPS:           getEnvInt("VIDEO_FPS", 24),
		VideoWidth:         getEnvInt("VIDEO_WIDTH", 1920),
		VideoHeight:        getEnvInt("VIDEO_HEIGHT", 1080),
		PanelDuration:      time.Duration(getEnvInt("PANEL_SECONDS", 6)) * time.Second,
		TransitionDuration: time.Duration(getEnvInt("TRANSITION_SECONDS", 1)) * time.Second,
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
	}

	switch cfg.APIFormat {
	case FormatGemini:
		cfg.APIURL = getEnv("IMAGE_API_URL", "https://generativelanguage.googleapis.com/v1beta")
		cfg.Model = getEnv("IMAGE_MODEL", "gemini-2.5-flash-image")
	default:
		cfg.APIFormat = FormatOpenRouter
		cfg.APIURL = getEnv("IMAGE_API_URL", "https://openrouter.ai/api/v1/chat/completions")
		cfg.Model = getEnv("IMAGE_MODEL", "google/gemini-2.5-flash-image-preview")
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.WorkDir = wd
	}

	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.VideoFPS < 1 {
		cfg.VideoFPS = 24
	}
	if cfg.PanelDuration <= 0 {
		cfg.PanelDuration = 6 * time.Second
	}
	if cfg.TransitionDuration < 0 || cfg.TransitionDuration >= cfg.PanelDuration {
		cfg.TransitionDuration = time.Second
	}

	cfg.APIKey = firstNonEmpty(
		os.Getenv("IMAGE_API_KEY"),
		os.Getenv("OPENROUTER_API_KEY"),
		os.Getenv("GEMINI_API_KEY"),
	)
	if cfg.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}

	return cfg, nil
}

func (c Config) InputsDir() string  { return filepath.Join(c.WorkDir, "inputs") }
func (c Config) PanelsDir() string  { return filepath.Join(c.WorkDir, "panels") }
func (c Config) ExportsDir() string { return filepath.Join(c.WorkDir, "exports") }
func (c Config) CacheDir() string   { return filepath.Join(c.WorkDir, "cache") }
func (c Config) PlanPath() string   { return filepath.Join(c.WorkDir, PlanFilename) }

// EnsureDirs creates the inputs, panels, exports and cache directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.InputsDir(), c.PanelsDir(), c.ExportsDir(), c.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (c Config) TelegramConfigured() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
