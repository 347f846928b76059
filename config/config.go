package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	AppName     = "product-lens"
	EnvFileName = "config.env"
)

const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultGeminiModel    = "gemini-2.5-pro"
	DefaultMaxUploadBytes = 20 * 1024 * 1024
	DefaultLogFile        = "product-lens.log"
)

// Config holds the runtime settings read from the environment.
type Config struct {
	// APIKey is the Gemini credential. Empty is allowed at startup; every
	// analysis attempt then fails with a configuration error.
	APIKey         string
	ListenAddr     string
	GeminiModel    string
	CameraDevice   int
	MaxUploadBytes int64
	LogFile        string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from a .env file in the working directory. Errors are
// ignored since the files may not exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load()
}

// Load builds a Config from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		ListenAddr:     envOr("LISTEN_ADDR", DefaultListenAddr),
		GeminiModel:    envOr("GEMINI_MODEL", DefaultGeminiModel),
		MaxUploadBytes: DefaultMaxUploadBytes,
		LogFile:        DefaultLogFile,
	}

	// API_KEY is the variable name older deployments used.
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_KEY")
	}

	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.LogFile = v
	}

	if v := os.Getenv("CAMERA_DEVICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("CAMERA_DEVICE must be a non-negative integer, got %q", v)
		}
		cfg.CameraDevice = n
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxUploadBytes = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
