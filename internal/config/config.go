// Package config provides configuration for the Lattice analytics engine.
// Values come from the environment with sensible local defaults; an
// optional YAML file overrides them, and a watcher hot-reloads tunables in
// development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config holds all engine configuration.
type Config struct {
	Environment   Environment `yaml:"environment"`
	ServerAddress string      `yaml:"server_address"`

	Supabase SupabaseConfig `yaml:"supabase"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Graph    GraphConfig    `yaml:"graph"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// SupabaseConfig configures the relational graph store.
type SupabaseConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig configures the embedding collaborator.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// GraphConfig holds graph-building defaults.
type GraphConfig struct {
	DefaultMaxNodes int  `yaml:"default_max_nodes"`
	IncludeEntities bool `yaml:"include_entities"`
	MaxDepth        int  `yaml:"max_depth"`
}

// CacheConfig holds analytics-cache tunables.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	AnalyticsTTL  time.Duration `yaml:"analytics_ttl"`
	CommunityTTL  time.Duration `yaml:"community_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SearchConfig holds hybrid-search defaults.
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	DefaultThreshold float64 `yaml:"default_threshold"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoadConfig builds the configuration from the environment, then applies
// the YAML file named by CONFIG_FILE when present.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:   Environment(getEnv("ENVIRONMENT", string(Development))),
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Supabase: SupabaseConfig{
			URL:    os.Getenv("SUPABASE_URL"),
			APIKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Graph: GraphConfig{
			DefaultMaxNodes: getEnvInt("GRAPH_MAX_NODES", 500),
			IncludeEntities: getEnv("GRAPH_INCLUDE_ENTITIES", "true") != "false",
			MaxDepth:        getEnvInt("GRAPH_MAX_DEPTH", 5),
		},
		Cache: CacheConfig{
			Enabled:       getEnv("CACHE_ENABLED", "true") != "false",
			AnalyticsTTL:  getEnvDuration("CACHE_ANALYTICS_TTL", 10*time.Minute),
			CommunityTTL:  getEnvDuration("CACHE_COMMUNITY_TTL", 10*time.Minute),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		},
		Search: SearchConfig{
			DefaultLimit:     getEnvInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:         getEnvInt("SEARCH_MAX_LIMIT", 100),
			DefaultThreshold: getEnvFloat("SEARCH_DEFAULT_THRESHOLD", 0.7),
		},
		Tracing: TracingConfig{
			Enabled:  getEnv("TRACING_ENABLED", "false") == "true",
			Endpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays values from a YAML file onto the config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Graph.DefaultMaxNodes <= 0 {
		return fmt.Errorf("graph.default_max_nodes must be positive, got %d", c.Graph.DefaultMaxNodes)
	}
	if c.Cache.AnalyticsTTL <= 0 || c.Cache.CommunityTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Search.DefaultThreshold < 0 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("search.default_threshold must be in [0,1], got %f", c.Search.DefaultThreshold)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("invalid search limits: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
