// Package config holds the billparse configuration tree and converts it into
// the option structs of the pipeline packages.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/billparse/internal/fetch"
	"github.com/MeKo-Tech/billparse/internal/layout"
	"github.com/MeKo-Tech/billparse/internal/llm"
	"github.com/MeKo-Tech/billparse/internal/ocr"
	"github.com/MeKo-Tech/billparse/internal/raster"
	"github.com/MeKo-Tech/billparse/internal/version"
)

// Config is the complete configuration of the billparse service and CLI.
// Values come from a config file, BILLPARSE_* environment variables and flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Fetch    FetchConfig    `mapstructure:"fetch" yaml:"fetch" json:"fetch"`
	Raster   RasterConfig   `mapstructure:"raster" yaml:"raster" json:"raster"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Layout   LayoutConfig   `mapstructure:"layout" yaml:"layout" json:"layout"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm" json:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `mapstructure:"host" yaml:"host" json:"host"`
	Port             int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MetricsEnabled   bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled"`
	WebSocketEnabled bool   `mapstructure:"websocket_enabled" yaml:"websocket_enabled" json:"websocket_enabled"`
}

// FetchConfig contains document download settings.
type FetchConfig struct {
	TimeoutSec   int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxMB        int    `mapstructure:"max_mb" yaml:"max_mb" json:"max_mb"`
	Attempts     int    `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	RetryDelayMS int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms" json:"retry_delay_ms"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// RasterConfig contains PDF rasterization settings.
type RasterConfig struct {
	Backend      string `mapstructure:"backend" yaml:"backend" json:"backend"`
	DPI          int    `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	MaxPages     int    `mapstructure:"max_pages" yaml:"max_pages" json:"max_pages"`
	PdftoppmPath string `mapstructure:"pdftoppm_path" yaml:"pdftoppm_path" json:"pdftoppm_path"`
}

// OCRConfig contains OCR engine settings.
type OCRConfig struct {
	Backend       string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	TesseractPath string  `mapstructure:"tesseract_path" yaml:"tesseract_path" json:"tesseract_path"`
	Language      string  `mapstructure:"language" yaml:"language" json:"language"`
	PSM           int     `mapstructure:"psm" yaml:"psm" json:"psm"`
	TimeoutSec    int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	PogoURL       string  `mapstructure:"pogo_url" yaml:"pogo_url" json:"pogo_url"`
	MaxImageSide  int     `mapstructure:"max_image_side" yaml:"max_image_side" json:"max_image_side"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
}

// LayoutConfig contains row reconstruction settings.
type LayoutConfig struct {
	RowTolerance float64 `mapstructure:"row_tolerance" yaml:"row_tolerance" json:"row_tolerance"`
	Anchor       string  `mapstructure:"anchor" yaml:"anchor" json:"anchor"`
	Separator    string  `mapstructure:"separator" yaml:"separator" json:"separator"`
}

// LLMConfig contains language model settings.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" json:"provider"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model" json:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key" json:"-"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// PipelineConfig contains whole-request settings.
type PipelineConfig struct {
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec" json:"request_timeout_sec"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8000,
			CORSOrigin:       "*",
			TimeoutSec:       120,
			ShutdownTimeout:  10,
			MetricsEnabled:   true,
			WebSocketEnabled: true,
		},
		Fetch: FetchConfig{
			TimeoutSec:   25,
			MaxMB:        50,
			Attempts:     2,
			RetryDelayMS: 500,
			UserAgent:    version.UserAgent(),
		},
		Raster: RasterConfig{
			Backend:      raster.BackendPdftoppm,
			DPI:          200,
			PdftoppmPath: "pdftoppm",
		},
		OCR: OCRConfig{
			Backend:       ocr.BackendTesseract,
			TesseractPath: "tesseract",
			Language:      "eng",
			PSM:           6,
			TimeoutSec:    60,
			PogoURL:       "http://localhost:8080",
		},
		Layout: LayoutConfig{
			RowTolerance: layout.DefaultRowTolerance,
			Anchor:       string(layout.AnchorLast),
			Separator:    layout.DefaultSeparator,
		},
		LLM: LLMConfig{
			Provider:    llm.ProviderOpenAI,
			BaseURL:     llm.DefaultBaseURL,
			Model:       llm.DefaultModel,
			Temperature: 0.1,
			TimeoutSec:  60,
		},
		Pipeline: PipelineConfig{
			RequestTimeoutSec: 120,
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if err := oneOf("raster.backend", c.Raster.Backend, raster.Backends); err != nil {
		return err
	}
	if err := oneOf("ocr.backend", c.OCR.Backend, ocr.Backends); err != nil {
		return err
	}
	if err := oneOf("llm.provider", c.LLM.Provider, []string{llm.ProviderOpenAI, llm.ProviderGemini}); err != nil {
		return err
	}
	if _, err := layout.ParseAnchor(c.Layout.Anchor); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	positives := []struct {
		name  string
		value int
	}{
		{"server.timeout_sec", c.Server.TimeoutSec},
		{"fetch.timeout_sec", c.Fetch.TimeoutSec},
		{"fetch.max_mb", c.Fetch.MaxMB},
		{"fetch.attempts", c.Fetch.Attempts},
		{"raster.dpi", c.Raster.DPI},
		{"ocr.timeout_sec", c.OCR.TimeoutSec},
		{"llm.timeout_sec", c.LLM.TimeoutSec},
		{"pipeline.request_timeout_sec", c.Pipeline.RequestTimeoutSec},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("invalid %s: %d (must be positive)", p.name, p.value)
		}
	}
	if c.Raster.MaxPages < 0 {
		return fmt.Errorf("invalid raster.max_pages: %d (must not be negative)", c.Raster.MaxPages)
	}
	if c.Layout.RowTolerance < 0 {
		return fmt.Errorf("invalid layout.row_tolerance: %.2f (must not be negative)", c.Layout.RowTolerance)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm.temperature: %.2f (must be between 0.0 and 2.0)", c.LLM.Temperature)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("invalid ocr.min_confidence: %.2f (must be between 0.0 and 1.0)", c.OCR.MinConfidence)
	}
	return nil
}

func oneOf(name, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", name, value, strings.Join(allowed, ", "))
}

// ResolveAPIKey returns the configured LLM key, falling back to the provider's
// conventional environment variables.
func (c *Config) ResolveAPIKey() string {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	envs := []string{"GROQ_API_KEY", "OPENAI_API_KEY"}
	if c.LLM.Provider == llm.ProviderGemini {
		envs = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range envs {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// SlogLevel maps LogLevel to a slog level; Verbose forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ToLLMConfig converts to llm.Config.
func (c *Config) ToLLMConfig(logger *slog.Logger) llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		BaseURL:     c.LLM.BaseURL,
		Model:       c.LLM.Model,
		APIKey:      c.ResolveAPIKey(),
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     seconds(c.LLM.TimeoutSec),
		Logger:      logger,
	}
}

// ToOCRConfig converts to ocr.Config.
func (c *Config) ToOCRConfig(logger *slog.Logger) ocr.Config {
	return ocr.Config{
		Backend:       c.OCR.Backend,
		TesseractPath: c.OCR.TesseractPath,
		Language:      c.OCR.Language,
		PSM:           c.OCR.PSM,
		Timeout:       seconds(c.OCR.TimeoutSec),
		PogoURL:       c.OCR.PogoURL,
		MaxImageSide:  c.OCR.MaxImageSide,
		MinConfidence: c.OCR.MinConfidence,
		Logger:        logger,
	}
}

// ToRasterConfig converts to raster.Config.
func (c *Config) ToRasterConfig(logger *slog.Logger) raster.Config {
	return raster.Config{
		Backend:      c.Raster.Backend,
		DPI:          c.Raster.DPI,
		MaxPages:     c.Raster.MaxPages,
		PdftoppmPath: c.Raster.PdftoppmPath,
		Logger:       logger,
	}
}

// ToFetchConfig converts to fetch.Config.
func (c *Config) ToFetchConfig(logger *slog.Logger) fetch.Config {
	return fetch.Config{
		Timeout:    seconds(c.Fetch.TimeoutSec),
		MaxBytes:   int64(c.Fetch.MaxMB) << 20,
		Attempts:   uint(max(c.Fetch.Attempts, 1)),
		RetryDelay: time.Duration(c.Fetch.RetryDelayMS) * time.Millisecond,
		UserAgent:  c.Fetch.UserAgent,
		Logger:     logger,
	}
}

// ToLayoutOptions converts to layout.Options. Validate must have accepted the anchor.
func (c *Config) ToLayoutOptions() layout.Options {
	anchor, err := layout.ParseAnchor(c.Layout.Anchor)
	if err != nil {
		anchor = layout.AnchorLast
	}
	return layout.Options{
		RowTolerance: c.Layout.RowTolerance,
		Anchor:       anchor,
		Separator:    c.Layout.Separator,
	}
}

// RequestTimeout is the whole-request budget.
func (c *Config) RequestTimeout() time.Duration {
	return seconds(c.Pipeline.RequestTimeoutSec)
}
