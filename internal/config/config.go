package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCatalogURL = "https://photoslibrary.googleapis.com/v1/mediaItems:search"
	MaxPageSize       = 100
)

type Config struct {
	DownloadDir     string
	DataDir         string
	BatchSize       int
	PageSize        int
	LogLevel        slog.Level
	LogFormat       string
	CredentialsFile string
	TokenFile       string
	AccessToken     string
	CatalogURL      string
	CatalogTimeout  time.Duration
	FetchTimeout    time.Duration
	StatusAddr      string
}

// New returns a viper instance with defaults and env bindings applied.
// Callers layer a config file and command line flags on top.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("download_dir", "./downloaded_videos")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("batch_size", 10)
	v.SetDefault("page_size", MaxPageSize)
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_format", "text")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("token_file", "token.json")
	v.SetDefault("access_token", "")
	v.SetDefault("catalog_url", DefaultCatalogURL)
	v.SetDefault("catalog_timeout", 30*time.Second)
	v.SetDefault("fetch_timeout", time.Duration(0))
	v.SetDefault("status_addr", "")

	v.SetEnvPrefix("VIDPULL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for compatibility with plain env setups.
	_ = v.BindEnv("download_dir", "VIDPULL_DOWNLOAD_DIR", "DOWNLOAD_DIR")
	_ = v.BindEnv("data_dir", "VIDPULL_DATA_DIR", "DATA_DIR")
	_ = v.BindEnv("log_level", "VIDPULL_LOG_LEVEL", "LOG_LEVEL")
	return v
}

// ReadFile merges an optional YAML/JSON config file into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DownloadDir:     strings.TrimSpace(v.GetString("download_dir")),
		DataDir:         strings.TrimSpace(v.GetString("data_dir")),
		BatchSize:       v.GetInt("batch_size"),
		PageSize:        v.GetInt("page_size"),
		LogLevel:        ParseLevel(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		CredentialsFile: v.GetString("credentials_file"),
		TokenFile:       v.GetString("token_file"),
		AccessToken:     v.GetString("access_token"),
		CatalogURL:      v.GetString("catalog_url"),
		CatalogTimeout:  v.GetDuration("catalog_timeout"),
		FetchTimeout:    v.GetDuration("fetch_timeout"),
		StatusAddr:      v.GetString("status_addr"),
	}

	if cfg.DownloadDir == "" {
		return Config{}, fmt.Errorf("download_dir must not be empty")
	}
	if cfg.BatchSize < 1 {
		return Config{}, fmt.Errorf("batch_size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		return Config{}, fmt.Errorf("page_size must be between 1 and %d, got %d", MaxPageSize, cfg.PageSize)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.CatalogTimeout < 0 || cfg.FetchTimeout < 0 {
		return Config{}, fmt.Errorf("timeouts must not be negative")
	}
	return cfg, nil
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
