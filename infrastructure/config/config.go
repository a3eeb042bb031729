// Package config loads application configuration from an optional YAML
// file with environment variable overrides. Environment always wins so
// deployments can patch a single value without editing the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "braindump/domain/config"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Supabase configuration
	SupabaseURL        string `yaml:"supabase_url"`
	SupabaseServiceKey string `yaml:"supabase_service_key"`

	// Enrichment configuration
	EnrichmentEndpoint string `yaml:"enrichment_endpoint"`
	EnrichmentAPIKey   string `yaml:"enrichment_api_key"`

	// Workspace to load at startup; empty means a fresh workspace
	WorkspaceID   string `yaml:"workspace_id"`
	WorkspaceName string `yaml:"workspace_name"`

	// Logging and features
	LogLevel      string `yaml:"log_level"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableCORS    bool   `yaml:"enable_cors"`

	// Engine tuning overrides; zero values keep the environment defaults
	Engine EngineTuning `yaml:"engine"`
}

// EngineTuning is the file-configurable subset of the engine settings
type EngineTuning struct {
	MaxHistory          int           `yaml:"max_history"`
	HistoryDebounce     time.Duration `yaml:"history_debounce"`
	PositionFlushWindow time.Duration `yaml:"position_flush_window"`
	EnrichmentThreshold int           `yaml:"enrichment_threshold"`
	MaxTextLength       int           `yaml:"max_text_length"`
	TouchThreshold      float64       `yaml:"touch_threshold"`
	MergeThreshold      float64       `yaml:"merge_threshold"`
}

// LoadConfig loads configuration from the given YAML file (skipped when
// path is empty or the file does not exist) and then applies
// environment variable overrides
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		ServerAddress: ":8080",
		Environment:   "development",
		WorkspaceName: "scratch",
		LogLevel:      "info",
		EnableMetrics: true,
		EnableCORS:    true,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.SupabaseURL = getEnv("SUPABASE_URL", c.SupabaseURL)
	c.SupabaseServiceKey = getEnv("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceKey)
	c.EnrichmentEndpoint = getEnv("ENRICHMENT_ENDPOINT", c.EnrichmentEndpoint)
	c.EnrichmentAPIKey = getEnv("ENRICHMENT_API_KEY", c.EnrichmentAPIKey)
	c.WorkspaceID = getEnv("WORKSPACE_ID", c.WorkspaceID)
	c.WorkspaceName = getEnv("WORKSPACE_NAME", c.WorkspaceName)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.Engine.MaxHistory = getEnvInt("ENGINE_MAX_HISTORY", c.Engine.MaxHistory)
}

// Validate checks that production deployments carry the settings that
// have no safe default
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required in production")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY is required in production")
		}
	}
	if c.Engine.MaxHistory < 0 {
		return fmt.Errorf("engine.max_history cannot be negative")
	}
	return nil
}

// EngineConfig builds the domain engine settings for this environment
// and applies the file's tuning overrides
func (c *Config) EngineConfig() *domainconfig.EngineConfig {
	engine := domainconfig.LoadEngineConfig(c.Environment)

	if c.Engine.MaxHistory > 0 {
		engine.MaxHistory = c.Engine.MaxHistory
	}
	if c.Engine.HistoryDebounce > 0 {
		engine.HistoryDebounce = c.Engine.HistoryDebounce
	}
	if c.Engine.PositionFlushWindow > 0 {
		engine.PositionFlushWindow = c.Engine.PositionFlushWindow
	}
	if c.Engine.EnrichmentThreshold > 0 {
		engine.EnrichmentThreshold = c.Engine.EnrichmentThreshold
	}
	if c.Engine.MaxTextLength > 0 {
		engine.MaxTextLength = c.Engine.MaxTextLength
	}
	if c.Engine.TouchThreshold > 0 {
		engine.TouchThreshold = c.Engine.TouchThreshold
	}
	if c.Engine.MergeThreshold > 0 {
		engine.MergeThreshold = c.Engine.MergeThreshold
	}
	return engine
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
