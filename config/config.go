package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "ai-design-team"
	EnvFileName = "config.env"
)

const (
	DefaultModel          = "gemini-2.0-flash-exp"
	DefaultListenAddr     = ":8501"
	DefaultSessionTTL     = 2 * time.Hour
	DefaultMaxUploadMB    = 32
	DefaultLottieURL      = "https://assets5.lottiefiles.com/packages/lf20_si7mrdxq.json"
	DefaultLogFormat      = "console"
	DefaultCacheMaxAge    = 7 * 24 * time.Hour
	sessionSecretVariable = "SESSION_SECRET"
)

// RequiredEnvVars lists the variables the setup wizard offers to fill in.
// The server can start without them, but sessions will not survive a restart.
var RequiredEnvVars = []string{sessionSecretVariable}

// Config holds runtime settings read from the environment.
type Config struct {
	GeminiAPIKey   string        // Operator default key, users may enter their own
	Model          string        // Gemini model used for every call
	CallTimeout    time.Duration // Per model call, zero means no timeout
	ListenAddr     string
	SessionSecret  string
	SessionTTL     time.Duration
	CacheDBPath    string // Empty keeps the response cache in memory
	CacheMaxAge    time.Duration
	CORSOrigins    []string // Origins allowed to call /api, "*" when unset
	MaxUploadBytes int64
	LottieURL      string
	LogFormat      string // "console" or "json"
	LogFile        string // Optional file that receives a copy of the console log
}

// Dir returns the application's config directory path.
// Creates the directory if it doesn't exist.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
// Variables already present in the process environment win.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// MissingRequired returns the names of RequiredEnvVars that are unset.
func MissingRequired() []string {
	var missing []string
	for _, v := range RequiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:         envOr("GEMINI_MODEL", DefaultModel),
		ListenAddr:    envOr("LISTEN_ADDR", DefaultListenAddr),
		SessionSecret: os.Getenv(sessionSecretVariable),
		CacheDBPath:   strings.TrimSpace(os.Getenv("CACHE_DB_PATH")),
		LottieURL:     envOr("LOTTIE_URL", DefaultLottieURL),
		LogFormat:     strings.ToLower(envOr("LOG_FORMAT", DefaultLogFormat)),
		LogFile:       strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", DefaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.CallTimeout, err = durationEnv("GEMINI_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = durationEnv("CACHE_MAX_AGE", DefaultCacheMaxAge); err != nil {
		return nil, err
	}

	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	uploadMB := int64(DefaultMaxUploadMB)
	if raw := strings.TrimSpace(os.Getenv("MAX_UPLOAD_MB")); raw != "" {
		uploadMB, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || uploadMB < 1 {
			return nil, fmt.Errorf("MAX_UPLOAD_MB must be a positive integer, got %q", raw)
		}
	}
	cfg.MaxUploadBytes = uploadMB * 1024 * 1024

	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, raw)
	}
	return d, nil
}
