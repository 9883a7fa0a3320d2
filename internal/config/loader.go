package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "billparse"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BILLPARSE"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings made in the root command are honoured.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on a caller-owned viper instance.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the configuration from the search paths, the environment and
// defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile is Load with an explicit config file. An empty path searches
// the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads the configuration but skips Validate.
// Used by `config show` so a broken file can still be inspected.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.metrics_enabled", d.Server.MetricsEnabled)
	l.v.SetDefault("server.websocket_enabled", d.Server.WebSocketEnabled)

	l.v.SetDefault("fetch.timeout_sec", d.Fetch.TimeoutSec)
	l.v.SetDefault("fetch.max_mb", d.Fetch.MaxMB)
	l.v.SetDefault("fetch.attempts", d.Fetch.Attempts)
	l.v.SetDefault("fetch.retry_delay_ms", d.Fetch.RetryDelayMS)
	l.v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)

	l.v.SetDefault("raster.backend", d.Raster.Backend)
	l.v.SetDefault("raster.dpi", d.Raster.DPI)
	l.v.SetDefault("raster.max_pages", d.Raster.MaxPages)
	l.v.SetDefault("raster.pdftoppm_path", d.Raster.PdftoppmPath)

	l.v.SetDefault("ocr.backend", d.OCR.Backend)
	l.v.SetDefault("ocr.tesseract_path", d.OCR.TesseractPath)
	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.psm", d.OCR.PSM)
	l.v.SetDefault("ocr.timeout_sec", d.OCR.TimeoutSec)
	l.v.SetDefault("ocr.pogo_url", d.OCR.PogoURL)
	l.v.SetDefault("ocr.max_image_side", d.OCR.MaxImageSide)
	l.v.SetDefault("ocr.min_confidence", d.OCR.MinConfidence)

	l.v.SetDefault("layout.row_tolerance", d.Layout.RowTolerance)
	l.v.SetDefault("layout.anchor", d.Layout.Anchor)
	l.v.SetDefault("layout.separator", d.Layout.Separator)

	l.v.SetDefault("llm.provider", d.LLM.Provider)
	l.v.SetDefault("llm.base_url", d.LLM.BaseURL)
	l.v.SetDefault("llm.model", d.LLM.Model)
	l.v.SetDefault("llm.api_key", d.LLM.APIKey)
	l.v.SetDefault("llm.temperature", d.LLM.Temperature)
	l.v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	l.v.SetDefault("llm.timeout_sec", d.LLM.TimeoutSec)

	l.v.SetDefault("pipeline.request_timeout_sec", d.Pipeline.RequestTimeoutSec)
}

// GenerateDefaultConfigFile writes the defaults to filename (billparse.yaml if empty).
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWith(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, "billparse"))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", "billparse"))
	}
	return append(paths, "/etc/billparse")
}
