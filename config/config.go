// Package config loads service settings from YAML, an optional .env file and
// the process environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"fuelcell/logging"
	"fuelcell/ml"
	"fuelcell/stack"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig       `yaml:"http" envPrefix:"HTTP_"`
	Log      logging.Options  `yaml:"log" envPrefix:"LOG_"`
	Models   ModelsConfig     `yaml:"models" envPrefix:"MODELS_"`
	Database DatabaseConfig   `yaml:"database" envPrefix:"DATABASE_"`
	Report   ReportConfig     `yaml:"report" envPrefix:"REPORT_"`
	Stack    stack.Parameters `yaml:"stack"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type ModelsConfig struct {
	Paths     ml.ArtifactPaths `yaml:",inline"`
	Watch     bool             `yaml:"watch" env:"WATCH"`
	CacheSize int              `yaml:"cache_size" env:"CACHE_SIZE"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type ReportConfig struct {
	Locale            string `yaml:"locale" env:"LOCALE"`
	EchartsAssetsHost string `yaml:"echarts_assets_host" env:"ECHARTS_ASSETS_HOST"`
}

// Default returns the configuration used when no file or env overrides it.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8501,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Log: logging.Options{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Models: ModelsConfig{
			Paths: ml.ArtifactPaths{
				Scaler:      "models/scaler.json",
				LoadModel:   "models/rf_load_model.json",
				TargetModel: "models/rf_target_model.json",
			},
			Watch:     true,
			CacheSize: 256,
		},
		Database: DatabaseConfig{Path: "data/predictions.db"},
		Report:   ReportConfig{Locale: "en"},
		Stack:    stack.Defaults(),
	}
}

// Load starts from Default, overlays the YAML file at path (if path is not
// empty), then .env and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	for _, p := range c.Models.Paths.All() {
		if p == "" {
			errs = append(errs, errors.New("models: all three artifact paths are required"))
			break
		}
	}
	if c.Models.CacheSize < 0 {
		errs = append(errs, errors.New("models.cache_size must not be negative"))
	}
	if err := c.Stack.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
