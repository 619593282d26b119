package config

import (
	"fmt"
	"time"
)

type Config struct {
	Analysis            AnalysisConfig      `yaml:"analysis"`
	HTTP                HttpConfig          `yaml:"http"`
	Backoff             BackoffConfig       `yaml:"backoff"`
	RateLimit           RateLimitConfig     `yaml:"rate_limit"`
	RobotsCacheTTLHours int                 `yaml:"robots_cache_ttl_hours"`
	Rod                 RodConfig           `yaml:"rod"`
	SelectorsFile       string              `yaml:"selectors_file"`
	Normalize           NormalizeConfig     `yaml:"normalize"`
	Render              RenderConfig        `yaml:"render"`
	Storage             StorageConfig       `yaml:"storage"`
	Observability       ObservabilityConfig `yaml:"observability"`
}

type AnalysisConfig struct {
	Provider     string       `yaml:"provider"`
	BaseURL      string       `yaml:"base_url"`
	Endpoint     string       `yaml:"endpoint"`
	APIKey       string       `yaml:"api_key"`
	EnhancedMode bool         `yaml:"enhanced_mode"`
	TimeoutMS    int          `yaml:"timeout_ms"`
	OpenAI       OpenAIConfig `yaml:"openai"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type HttpConfig struct {
	UserAgent        string `yaml:"user_agent"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	TotalTimeoutMS   int    `yaml:"total_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	AcceptLanguage   string `yaml:"accept_language"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`
	RPM                  int `yaml:"rpm"`
}

type RodConfig struct {
	ChromePath       string `yaml:"chrome_path"`
	Headless         bool   `yaml:"headless"`
	PageTimeoutS     int    `yaml:"page_timeout_s"`
	WaitLoadTimeoutS int    `yaml:"wait_load_timeout_s"`
}

type NormalizeConfig struct {
	MaxTextChars    int  `yaml:"max_text_chars"`
	MaxPreviewChars int  `yaml:"max_preview_chars"`
	TrimNBSP        bool `yaml:"trim_nbsp"` // сворачивать U+00A0 вместе с обычными пробелами
}

type RenderConfig struct {
	AddedClass          string `yaml:"added_class"`
	RemovedClass        string `yaml:"removed_class"`
	MarkerClass         string `yaml:"marker_class"`
	SanitizeReplacement bool   `yaml:"sanitize_replacement"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
	HistoryLimit     int    `yaml:"history_limit"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	MaxSizeMB     int    `yaml:"max_size_mb"`
	MaxBackups    int    `yaml:"max_backups"`
	MaxAgeDays    int    `yaml:"max_age_days"`
	ConsoleOutput bool   `yaml:"console_output"`
}

// Default - конфигурация для бэкенда на localhost с историей в локальном
// файле sqlite.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Provider:  "http",
			BaseURL:   "http://127.0.0.1:5000",
			Endpoint:  "/analyze",
			TimeoutMS: 60000,
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
		},
		HTTP: HttpConfig{
			UserAgent:        "biaslens/1.0 (+https://github.com/biaslens)",
			ConnectTimeoutMS: 10000,
			TotalTimeoutMS:   30000,
			MaxRetries:       2,
			AcceptLanguage:   "en-US,en;q=0.9",
		},
		Backoff: BackoffConfig{
			MinMS:     250,
			MaxMS:     2000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentPerHost: 2,
			RPM:                  30,
		},
		RobotsCacheTTLHours: 12,
		Rod: RodConfig{
			Headless:         true,
			PageTimeoutS:     30,
			WaitLoadTimeoutS: 20,
		},
		Normalize: NormalizeConfig{
			MaxTextChars:    2000,
			MaxPreviewChars: 120,
			TrimNBSP:        true,
		},
		Render: RenderConfig{
			AddedClass:   "added-text",
			RemovedClass: "removed-text",
			MarkerClass:  "context-marker",
		},
		Storage: StorageConfig{
			Driver:           "sqlite",
			DSN:              "biaslens.db",
			CommandTimeoutMS: 5000,
			HistoryLimit:     10,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			MaxSizeMB:     10,
			MaxBackups:    3,
			MaxAgeDays:    28,
			ConsoleOutput: true,
		},
	}
}

// Валидация
func (c *Config) Validate() error {
	switch c.Analysis.Provider {
	case "http":
		if c.Analysis.BaseURL == "" {
			return fmt.Errorf("analysis.base_url is required")
		}
	case "openai":
		if c.Analysis.OpenAI.Model == "" {
			return fmt.Errorf("analysis.openai.model is required")
		}
		if c.Analysis.OpenAI.APIKey == "" {
			return fmt.Errorf("analysis.openai.api_key is required when provider is 'openai'")
		}
	default:
		return fmt.Errorf("analysis.provider must be 'http' or 'openai'")
	}
	if c.Analysis.TimeoutMS < 0 {
		return fmt.Errorf("analysis.timeout_ms must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.ConnectTimeoutMS <= 0 {
		return fmt.Errorf("http.connect_timeout_ms must be > 0")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Backoff.MinMS <= 0 || c.Backoff.MaxMS < c.Backoff.MinMS {
		return fmt.Errorf("backoff.min_ms must be > 0 and <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.RateLimit.MaxConcurrentPerHost <= 0 {
		return fmt.Errorf("rate_limit.max_concurrent_per_host must be > 0")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Rod.PageTimeoutS < 0 || c.Rod.WaitLoadTimeoutS < 0 {
		return fmt.Errorf("rod timeouts must be >= 0")
	}
	if c.Normalize.MaxTextChars < 0 {
		return fmt.Errorf("normalize.max_text_chars must be >= 0")
	}
	if c.Normalize.MaxPreviewChars <= 0 {
		return fmt.Errorf("normalize.max_preview_chars must be > 0")
	}
	if c.Render.AddedClass == "" || c.Render.RemovedClass == "" || c.Render.MarkerClass == "" {
		return fmt.Errorf("render class names are required")
	}
	switch c.Storage.Driver {
	case "none":
	case "sqlite", "mssql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
		if c.Storage.HistoryLimit <= 0 {
			return fmt.Errorf("storage.history_limit must be > 0")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite', 'mssql' or 'none'")
	}
	return nil
}

// Геттеры
func (c *Config) GetAnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutMS) * time.Millisecond
}

func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutMS) * time.Millisecond
}

func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRobotsCacheTTL() time.Duration {
	return time.Duration(c.RobotsCacheTTLHours) * time.Hour
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodWaitLoadTimeout() time.Duration {
	return time.Duration(c.Rod.WaitLoadTimeoutS) * time.Second
}
