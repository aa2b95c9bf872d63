package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Local   LocalConfig
	Proxy   ProxyConfig
	Storage StorageConfig
	Search  SearchConfig
	Vector  VectorConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// LocalConfig points at an OpenAI-compatible model server on this machine
// (LM Studio, Ollama /v1).
type LocalConfig struct {
	URL     string
	Timeout time.Duration
}

type ProxyConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	PremiumModel string
}

type StorageConfig struct {
	DataDir   string
	UploadDir string
}

type SearchConfig struct {
	PerVariantLimit  int
	AcademicWeight   float64
	FetchTimeout     time.Duration
	FetchConcurrency int
	CacheTTL         time.Duration
}

type VectorConfig struct {
	Enabled    bool
	EmbedModel string
	IndexName  string
	APIKey     string // falls back to Proxy.APIKey
}

type LogConfig struct {
	Level  string
	File   string
	Format string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 8000,
			CORSOrigins: []string{
				"http://localhost:3173",
				"http://127.0.0.1:3173",
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
		},
		Local: LocalConfig{
			URL:     "http://127.0.0.1:1234/v1/chat/completions",
			Timeout: 120 * time.Second,
		},
		Proxy: ProxyConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultModel: "gpt-4o-mini",
			PremiumModel: "gpt-4o",
		},
		Storage: StorageConfig{
			DataDir:   dataDir,
			UploadDir: filepath.Join(dataDir, "uploads"),
		},
		Search: SearchConfig{
			PerVariantLimit:  4,
			AcademicWeight:   2,
			FetchTimeout:     5 * time.Second,
			FetchConcurrency: 4,
			CacheTTL:         10 * time.Minute,
		},
		Vector: VectorConfig{
			Enabled:    true,
			EmbedModel: "text-embedding-3-small",
			IndexName:  "lectern-documents",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration in increasing priority: defaults, the JSON file at
// $XDG_CONFIG_HOME/lectern/config.json, a .env file in the working directory
// (never overriding variables already set), and LECTERN_* environment
// variables. The hosted API key may also come from OPENAI_API_KEY or the
// secrets file.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] %v\n", err)
	}
	return loadWith(newDefaultBackend(), defaultSecrets())
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("could not load %s: %w", path, err)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Proxy.APIKey == "" {
		cfg.Proxy.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Proxy.APIKey == "" {
		if key, err := secrets.Get("lectern", "openai_api_key"); err == nil && key != "" {
			cfg.Proxy.APIKey = key
		}
	}

	if cfg.Proxy.APIKey == "" {
		return Config{}, errors.New("missing required config: hosted API key. " +
			"Set it via environment variable LECTERN_OPENAI_API_KEY or OPENAI_API_KEY")
	}

	if cfg.Vector.APIKey == "" {
		cfg.Vector.APIKey = cfg.Proxy.APIKey
	}

	return cfg, nil
}
