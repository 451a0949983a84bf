package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/qabot/constants"
)

// Config holds all application configuration
type Config struct {
	Rules    RulesConfig    `yaml:"rules"`
	LLM      LLMConfig      `yaml:"llm"`
	Check    CheckConfig    `yaml:"check"`
	Extract  ExtractConfig  `yaml:"extract"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
}

// RulesConfig says where the rules workbook lives.
type RulesConfig struct {
	WorkbookPath  string        `yaml:"workbook_path"`
	SheetURL      string        `yaml:"sheet_url"`
	IncludeShared bool          `yaml:"include_shared"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CheckConfig controls batching and aggregation.
type CheckConfig struct {
	Mode             string `yaml:"mode"`
	MaxBatchSize     int    `yaml:"max_batch_size"`
	Concurrency      int    `yaml:"concurrency"`
	MaxDocumentChars int    `yaml:"max_document_chars"`
}

// ExtractConfig holds document text extraction configuration
type ExtractConfig struct {
	Pdftotext string `yaml:"pdftotext"`
}

// DatabaseConfig holds run-log database configuration. An empty DSN disables the run log.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

func defaultConfig() *Config {
	return &Config{
		Rules: RulesConfig{
			IncludeShared: false,
			CacheTTL:      5 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    constants.ProviderOpenAI,
			Model:       constants.DefaultModel,
			Temperature: constants.DefaultTemperature,
			MaxTokens:   constants.DefaultMaxTokens,
			Timeout:     45 * time.Second,
		},
		Check: CheckConfig{
			Mode:             constants.ModeChunked,
			MaxBatchSize:     constants.DefaultMaxBatchSize,
			Concurrency:      1,
			MaxDocumentChars: 60000,
		},
		Extract: ExtractConfig{
			Pdftotext: "pdftotext",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			MaxConnLifetime: 30 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile reads a YAML file over the defaults, then applies environment overrides.
// An empty path behaves like LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError(CodeConfig, "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError(CodeConfig, fmt.Sprintf("parse config file %s", path), err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Rules.WorkbookPath = getEnv("QABOT_RULES_WORKBOOK", c.Rules.WorkbookPath)
	c.Rules.SheetURL = getEnv("QABOT_RULES_SHEET_URL", c.Rules.SheetURL)
	c.Rules.IncludeShared = getEnvAsBool("QABOT_RULES_INCLUDE_SHARED", c.Rules.IncludeShared)
	c.Rules.CacheTTL = getEnvAsDuration("QABOT_RULES_CACHE_TTL", c.Rules.CacheTTL)

	c.LLM.Provider = getEnv("QABOT_LLM_PROVIDER", c.LLM.Provider)
	switch c.LLM.Provider {
	case constants.ProviderGemini:
		c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
		c.LLM.Model = getEnv("GEMINI_MODEL", c.LLM.Model)
	default:
		c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
		c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
		c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	}
	c.LLM.Temperature = getEnvAsFloat32("QABOT_LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.MaxTokens = getEnvAsInt("QABOT_LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvAsDuration("QABOT_LLM_TIMEOUT", c.LLM.Timeout)

	c.Check.Mode = getEnv("QABOT_MODE", c.Check.Mode)
	c.Check.MaxBatchSize = getEnvAsInt("QABOT_MAX_BATCH_SIZE", c.Check.MaxBatchSize)
	c.Check.Concurrency = getEnvAsInt("QABOT_CONCURRENCY", c.Check.Concurrency)
	c.Check.MaxDocumentChars = getEnvAsInt("QABOT_MAX_DOCUMENT_CHARS", c.Check.MaxDocumentChars)

	c.Extract.Pdftotext = getEnv("PDFTOTEXT", c.Extract.Pdftotext)

	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Rules.WorkbookPath == "" && c.Rules.SheetURL == "" {
		return NewAppError(CodeConfig, "QABOT_RULES_WORKBOOK or QABOT_RULES_SHEET_URL is required", ErrInvalidInput)
	}
	if c.LLM.Provider != constants.ProviderOpenAI && c.LLM.Provider != constants.ProviderGemini {
		return NewAppError(CodeConfig, fmt.Sprintf("unknown LLM provider %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "an API key for the LLM provider is required", ErrInvalidInput)
	}
	if c.Check.MaxBatchSize <= 0 {
		return NewAppError(CodeConfig, "max batch size must be positive", ErrInvalidInput)
	}
	if c.Check.Concurrency <= 0 {
		return NewAppError(CodeConfig, "concurrency must be positive", ErrInvalidInput)
	}
	validMode := false
	for _, m := range constants.Modes {
		if c.Check.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return NewAppError(CodeConfig, fmt.Sprintf("unknown check mode %q", c.Check.Mode), ErrInvalidInput)
	}
	return nil
}
