package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Refdata  RefdataConfig  `toml:"refdata"`
	Report   ReportConfig   `toml:"report"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
	File  string `toml:"file"`
}

type RefdataConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ReportConfig struct {
	SMTPHost         string `toml:"smtp_host"`
	SMTPPort         int    `toml:"smtp_port"`
	From             string `toml:"from"`
	DefaultRecipient string `toml:"default_recipient"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Refdata: RefdataConfig{
			TimeoutSeconds: 10,
		},
		Report: ReportConfig{
			SMTPPort: 587,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Refdata.TimeoutSeconds < 0 {
		return errors.New("refdata.timeout_seconds must be >= 0")
	}
	if url := strings.TrimSpace(c.Refdata.BaseURL); url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("invalid refdata.base_url: %q", c.Refdata.BaseURL)
		}
	}

	if c.Report.SMTPPort < 0 || c.Report.SMTPPort > 65535 {
		return fmt.Errorf("invalid report.smtp_port: %d", c.Report.SMTPPort)
	}
	if strings.TrimSpace(c.Report.SMTPHost) != "" && strings.TrimSpace(c.Report.From) == "" {
		return errors.New("report.from is required when report.smtp_host is set")
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
