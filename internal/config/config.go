// Package config loads courseindex configuration from defaults, the user
// config file, the project file and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete courseindex configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Engine   EngineConfig   `yaml:"engine" json:"engine"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Queue    QueueConfig    `yaml:"queue" json:"queue"`
	Content  ContentConfig  `yaml:"content" json:"content"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// EngineConfig selects the search engine backend.
type EngineConfig struct {
	// Backend is "bleve", "sqlite", or "none" (indexing disabled).
	Backend string `yaml:"backend" json:"backend"`
	// DataDir holds one index per index name. Empty keeps indexes in memory.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// IndexingConfig tunes the reindex orchestrator.
type IndexingConfig struct {
	// ExcludedCategories are never indexed. Entries add to the defaults.
	ExcludedCategories []string `yaml:"excluded_categories" json:"excluded_categories"`
	// UnnamedPlaceholder replaces missing display names in breadcrumbs.
	UnnamedPlaceholder string `yaml:"unnamed_placeholder" json:"unnamed_placeholder"`
	// PageSize is the page used when listing a scope's ids from the engine.
	PageSize int `yaml:"page_size" json:"page_size"`
}

// QueueConfig configures the background reindex queue.
type QueueConfig struct {
	Workers         int    `yaml:"workers" json:"workers"`
	MaxRetries      int    `yaml:"max_retries" json:"max_retries"`
	RetryDelay      string `yaml:"retry_delay" json:"retry_delay"`
	ResultCacheSize int    `yaml:"result_cache_size" json:"result_cache_size"`
}

// ContentConfig points at the content fixture served by the in-memory store.
type ContentConfig struct {
	FixturePath   string `yaml:"fixture_path" json:"fixture_path"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// MetricsConfig configures the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultExcludedCategories are block types that are never searchable.
var DefaultExcludedCategories = []string{"openassessment"}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	home := homeDir()
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			Backend: "bleve",
			DataDir: filepath.Join(home, ".courseindex", "data"),
		},
		Indexing: IndexingConfig{
			ExcludedCategories: append([]string(nil), DefaultExcludedCategories...),
			UnnamedPlaceholder: "Unnamed",
			PageSize:           500,
		},
		Queue: QueueConfig{
			Workers:         2,
			MaxRetries:      2,
			RetryDelay:      "500ms",
			ResultCacheSize: 128,
		},
		Content: ContentConfig{
			WatchDebounce: "300ms",
		},
		Server: ServerConfig{
			SocketPath: filepath.Join(home, ".courseindex", "indexer.sock"),
			LogLevel:   "info",
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/courseindex/config.yaml, else ~/.config/courseindex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "courseindex", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "courseindex", "config.yaml")
}

// loadUserConfig returns nil, nil when no user config exists.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(path, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Load loads configuration for the project in dir. Precedence, lowest first:
//  1. Defaults
//  2. User config
//  3. Project config (.courseindex.yaml or .courseindex.yml in dir)
//  4. Environment variables (COURSEINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".courseindex.yaml", ".courseindex.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var parsed Config
		if err := parseYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func parseYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Engine.Backend != "" {
		c.Engine.Backend = other.Engine.Backend
	}
	if other.Engine.DataDir != "" {
		c.Engine.DataDir = other.Engine.DataDir
	}

	for _, cat := range other.Indexing.ExcludedCategories {
		if !contains(c.Indexing.ExcludedCategories, cat) {
			c.Indexing.ExcludedCategories = append(c.Indexing.ExcludedCategories, cat)
		}
	}
	if other.Indexing.UnnamedPlaceholder != "" {
		c.Indexing.UnnamedPlaceholder = other.Indexing.UnnamedPlaceholder
	}
	if other.Indexing.PageSize != 0 {
		c.Indexing.PageSize = other.Indexing.PageSize
	}

	if other.Queue.Workers != 0 {
		c.Queue.Workers = other.Queue.Workers
	}
	if other.Queue.MaxRetries != 0 {
		c.Queue.MaxRetries = other.Queue.MaxRetries
	}
	if other.Queue.RetryDelay != "" {
		c.Queue.RetryDelay = other.Queue.RetryDelay
	}
	if other.Queue.ResultCacheSize != 0 {
		c.Queue.ResultCacheSize = other.Queue.ResultCacheSize
	}

	if other.Content.FixturePath != "" {
		c.Content.FixturePath = other.Content.FixturePath
	}
	if other.Content.WatchDebounce != "" {
		c.Content.WatchDebounce = other.Content.WatchDebounce
	}

	if other.Server.SocketPath != "" {
		c.Server.SocketPath = other.Server.SocketPath
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COURSEINDEX_ENGINE"); v != "" {
		c.Engine.Backend = v
	}
	if v := os.Getenv("COURSEINDEX_DATA_DIR"); v != "" {
		c.Engine.DataDir = v
	}
	if v := os.Getenv("COURSEINDEX_CONTENT"); v != "" {
		c.Content.FixturePath = v
	}
	if v := os.Getenv("COURSEINDEX_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Queue.Workers = n
		}
	}
	if v := os.Getenv("COURSEINDEX_SOCKET"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv("COURSEINDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("COURSEINDEX_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
}

// normalize lower-cases enumerated values so every reader sees one spelling.
func (c *Config) normalize() {
	c.Engine.Backend = strings.ToLower(strings.TrimSpace(c.Engine.Backend))
	c.Server.LogLevel = strings.ToLower(strings.TrimSpace(c.Server.LogLevel))
}

// Validate checks the final configuration. An empty backend disables
// indexing, the same as "none".
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Backend)) {
	case "bleve", "sqlite", "none", "":
	default:
		return fmt.Errorf("engine.backend must be 'bleve', 'sqlite' or 'none', got %s", c.Engine.Backend)
	}

	if c.Indexing.PageSize <= 0 {
		return fmt.Errorf("indexing.page_size must be positive, got %d", c.Indexing.PageSize)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must be non-negative, got %d", c.Queue.MaxRetries)
	}
	if _, err := time.ParseDuration(c.Queue.RetryDelay); err != nil {
		return fmt.Errorf("queue.retry_delay is not a duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Content.WatchDebounce); err != nil {
		return fmt.Errorf("content.watch_debounce is not a duration: %w", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(strings.TrimSpace(c.Server.LogLevel))] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// RetryDelay returns the parsed queue retry delay.
func (c *Config) RetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.Queue.RetryDelay)
	return d
}

// WatchDebounce returns the parsed fixture watch debounce.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Content.WatchDebounce)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
