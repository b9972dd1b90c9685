// Package config loads application settings from config.yaml, .env and FINX_* variables.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Normalize  NormalizeConfig  `yaml:"normalize" mapstructure:"normalize"`
	Prompt     PromptConfig     `yaml:"prompt" mapstructure:"prompt"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Upload     UploadConfig     `yaml:"upload" mapstructure:"upload"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LLMConfig selects and configures the model providers.
type LLMConfig struct {
	ActiveProvider string       `yaml:"active_provider" mapstructure:"active_provider"`
	Gemini         GeminiConfig `yaml:"gemini" mapstructure:"gemini"`
	Azure          AzureConfig  `yaml:"azure" mapstructure:"azure"`
	Ollama         OllamaConfig `yaml:"ollama" mapstructure:"ollama"`
	TimeoutSecs    int          `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeminiConfig holds the cloud provider settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// AzureConfig holds the proxy provider settings.
type AzureConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Deployment string `yaml:"deployment" mapstructure:"deployment"`
	APIVersion string `yaml:"api_version" mapstructure:"api_version"`
}

// OllamaConfig holds the local provider settings.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ExtractionConfig tunes document processing.
type ExtractionConfig struct {
	ChartRPS     float64 `yaml:"chart_rps" mapstructure:"chart_rps"`
	RenderDPI    int     `yaml:"render_dpi" mapstructure:"render_dpi"`
	PdftoppmPath string  `yaml:"pdftoppm_path" mapstructure:"pdftoppm_path"`
}

// NormalizeConfig tunes model output parsing.
type NormalizeConfig struct {
	Lenient bool `yaml:"lenient" mapstructure:"lenient"`
}

// PromptConfig points at an optional directory of prompt overrides.
type PromptConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// DatabaseConfig enables session snapshots when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// UploadConfig bounds uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	// Environment
	v.SetEnvPrefix("FINX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.active_provider", "gemini")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.azure.api_version", "2024-06-01")
	v.SetDefault("llm.ollama.base_url", "http://localhost:11434")
	v.SetDefault("llm.ollama.model", "llama3.1")
	v.SetDefault("llm.timeout_secs", 180)
	v.SetDefault("extraction.chart_rps", 1.0)
	v.SetDefault("extraction.render_dpi", 150)
	v.SetDefault("extraction.pdftoppm_path", "pdftoppm")
	v.SetDefault("normalize.lenient", false)
	v.SetDefault("upload.max_bytes", 50<<20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	applyProviderEnv(&cfg.LLM)
	return &cfg, nil
}

// applyProviderEnv falls back to the providers' conventional variables.
func applyProviderEnv(c *LLMConfig) {
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Azure.APIKey == "" {
		c.Azure.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	if c.Azure.Endpoint == "" {
		c.Azure.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if c.Azure.Deployment == "" {
		c.Azure.Deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	}
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = os.Getenv("OLLAMA_HOST")
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
