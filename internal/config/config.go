package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Log        LogConfig        `mapstructure:"log"`
	Debug      bool             `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host                  string        `mapstructure:"host" validate:"required"`
	Port                  int           `mapstructure:"port" validate:"min=1,max=65535"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests" validate:"min=1"`
	// RequestsPerSecond throttles new requests, 0 disables the throttle
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	MaxUploadMB       int     `mapstructure:"max_upload_mb" validate:"min=1"`
}

// InferenceConfig describes the remote model endpoint
type InferenceConfig struct {
	URL         string  `mapstructure:"url" validate:"required,url"`
	Model       string  `mapstructure:"model" validate:"required"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0"`
}

// ExtractionConfig contains page processing settings
type ExtractionConfig struct {
	MaxPages             int           `mapstructure:"max_pages" validate:"min=1"`
	PageTimeout          int           `mapstructure:"page_timeout" validate:"min=1"` // seconds
	RetryCount           int           `mapstructure:"retry_count" validate:"gte=0"`
	ProcessPerPage       bool          `mapstructure:"process_per_page"`
	InferenceConcurrency int           `mapstructure:"inference_concurrency" validate:"min=1"`
	PageCooldown         time.Duration `mapstructure:"page_cooldown" validate:"gte=0"`
	BackoffStep          time.Duration `mapstructure:"backoff_step" validate:"gte=0"`
	RenderWorkers        int           `mapstructure:"render_workers" validate:"min=1"`
	DPI                  float64       `mapstructure:"dpi" validate:"min=36,max=600"`
	JPEGQuality          int           `mapstructure:"jpeg_quality" validate:"min=1,max=100"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// PageTimeoutDuration returns the base per-page timeout
func (c ExtractionConfig) PageTimeoutDuration() time.Duration {
	return time.Duration(c.PageTimeout) * time.Second
}

// LogLevel returns the effective log level, debug mode wins
func (c *Config) LogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.Log.Level
}

// Load reads configuration from an optional YAML file, a .env file and environment variables
func Load(configPath string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Extraction.RenderWorkers == 0 {
		cfg.Extraction.RenderWorkers = runtime.NumCPU()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load for a config file that may be absent.
// Only a missing file falls back to defaults and environment, found reports whether the file was read.
// A file that exists but cannot be parsed or fails validation is an error.
func LoadOptional(configPath string) (cfg *Config, found bool, err error) {
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			cfg, err = Load(configPath)
			return cfg, err == nil, err
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("failed to stat config file: %w", statErr)
		}
	}
	cfg, err = Load("")
	return cfg, false, err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", 15*time.Minute)
	v.SetDefault("server.max_concurrent_requests", 32)
	v.SetDefault("server.requests_per_second", 0)
	v.SetDefault("server.max_upload_mb", 64)

	v.SetDefault("inference.url", "http://localhost:11434")
	v.SetDefault("inference.model", "gemma3:4b")
	v.SetDefault("inference.temperature", 0.1)

	v.SetDefault("extraction.max_pages", 10)
	v.SetDefault("extraction.page_timeout", 90)
	v.SetDefault("extraction.retry_count", 2)
	v.SetDefault("extraction.process_per_page", true)
	v.SetDefault("extraction.inference_concurrency", 1)
	v.SetDefault("extraction.page_cooldown", time.Second)
	v.SetDefault("extraction.backoff_step", 5*time.Second)
	v.SetDefault("extraction.render_workers", 0)
	v.SetDefault("extraction.dpi", 200)
	v.SetDefault("extraction.jpeg_quality", 85)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("debug", false)
}

// bindEnvVars binds environment variables to viper keys.
// The unprefixed names are the ones the service has always been deployed with.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.host":                      {"APP_SERVER_HOST", "HOST"},
		"server.port":                      {"APP_SERVER_PORT", "PORT"},
		"server.request_timeout":           {"APP_SERVER_REQUEST_TIMEOUT"},
		"server.max_concurrent_requests":   {"APP_SERVER_MAX_CONCURRENT_REQUESTS"},
		"server.requests_per_second":       {"APP_SERVER_REQUESTS_PER_SECOND"},
		"server.max_upload_mb":             {"APP_SERVER_MAX_UPLOAD_MB"},
		"inference.url":                    {"APP_INFERENCE_URL", "OLLAMA_SERVER_URL"},
		"inference.model":                  {"APP_INFERENCE_MODEL", "OLLAMA_MODEL"},
		"inference.temperature":            {"APP_INFERENCE_TEMPERATURE"},
		"extraction.max_pages":             {"APP_EXTRACTION_MAX_PAGES", "MAX_PAGES"},
		"extraction.page_timeout":          {"APP_EXTRACTION_PAGE_TIMEOUT", "PAGE_TIMEOUT"},
		"extraction.retry_count":           {"APP_EXTRACTION_RETRY_COUNT", "RETRY_COUNT"},
		"extraction.process_per_page":      {"APP_EXTRACTION_PROCESS_PER_PAGE", "PROCESS_PER_PAGE"},
		"extraction.inference_concurrency": {"APP_EXTRACTION_INFERENCE_CONCURRENCY"},
		"extraction.page_cooldown":         {"APP_EXTRACTION_PAGE_COOLDOWN"},
		"extraction.backoff_step":          {"APP_EXTRACTION_BACKOFF_STEP"},
		"extraction.render_workers":        {"APP_EXTRACTION_RENDER_WORKERS"},
		"extraction.dpi":                   {"APP_EXTRACTION_DPI"},
		"extraction.jpeg_quality":          {"APP_EXTRACTION_JPEG_QUALITY"},
		"log.level":                        {"APP_LOG_LEVEL"},
		"log.development":                  {"APP_LOG_DEVELOPMENT"},
		"debug":                            {"APP_DEBUG", "DEBUG_MODE"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// validate performs validation on the configuration
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}
