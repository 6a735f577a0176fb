package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// IndexDirName is the directory created under Index.Path that holds the index.
// Keeping the index one level down lets Index.Path be a mount root.
const IndexDirName = "posts.bleve"

// Supported object store backends.
const (
	BackendS3    = "s3"
	BackendRedis = "redis"
	BackendFS    = "fs"
)

// Config represents the complete postsearch configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source" json:"source"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Build   BuildConfig   `yaml:"build" json:"build"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig describes where posts are read from.
type SourceConfig struct {
	// Backend selects the object store: s3, redis or fs.
	Backend string `yaml:"backend" json:"backend"`
	// Bucket is the container holding post objects (POSTS_BUCKET_NAME).
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
	// Suffix filters enumerated keys down to post documents.
	Suffix string `yaml:"suffix" json:"suffix"`
	// PageSize is the listing page size requested from the backend.
	PageSize int `yaml:"page_size" json:"page_size"`
	// Concurrency bounds in-flight fetches. Never unbounded.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	FSRoot        string `yaml:"fs_root" json:"fs_root"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	S3Region      string `yaml:"s3_region" json:"s3_region"`
	S3Endpoint    string `yaml:"s3_endpoint" json:"s3_endpoint"`
	S3PathStyle   bool   `yaml:"s3_path_style" json:"s3_path_style"`
}

// IndexConfig locates the on-disk index and sizes its writer.
type IndexConfig struct {
	// Path is the directory holding the index (PATH_EFS).
	Path string `yaml:"path" json:"path"`
	// MemoryBudgetMB caps buffered writes before they are flushed to the staging copy.
	MemoryBudgetMB int `yaml:"memory_budget_mb" json:"memory_budget_mb"`
	// LockTimeout bounds how long a writer waits for the index lock.
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// BuildConfig controls build passes.
type BuildConfig struct {
	// Schedule is the interval between in-process builds under serve. Zero disables.
	Schedule   time.Duration `yaml:"schedule" json:"schedule"`
	RunOnStart bool          `yaml:"run_on_start" json:"run_on_start"`
	// StrictParse aborts the pass on the first malformed post when true,
	// and skips and logs malformed posts when false.
	StrictParse bool `yaml:"strict_parse" json:"strict_parse"`
	// Rebuild truncates the index before staging.
	Rebuild         bool          `yaml:"rebuild" json:"rebuild"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed" json:"retry_max_elapsed"`
	// Watch triggers builds from filesystem events (fs backend only).
	Watch         bool          `yaml:"watch" json:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig controls the query engine.
type SearchConfig struct {
	// Limit is the number of hits returned per query.
	Limit     int `yaml:"limit" json:"limit"`
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ServerConfig controls the HTTP front door.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Backend:     BackendS3,
			Prefix:      "posts/",
			Suffix:      ".json",
			PageSize:    1000,
			Concurrency: 10,
			FSRoot:      "./objects",
			RedisAddr:   "localhost:6379",
		},
		Index: IndexConfig{
			Path:           "./data",
			MemoryBudgetMB: 50,
			LockTimeout:    5 * time.Second,
		},
		Build: BuildConfig{
			RunOnStart:      true,
			StrictParse:     true,
			RetryMaxElapsed: 2 * time.Minute,
			WatchDebounce:   2 * time.Second,
		},
		Search: SearchConfig{
			Limit:     3,
			CacheSize: 256,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/postsearch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "postsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "postsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "postsearch", "config.yaml")
}

// Load loads configuration. It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/postsearch/config.yaml)
//  3. Project config (path, or postsearch.yaml in the working directory)
//  4. Environment variables, including those from a .env file
//
// Variables already set in the environment win over .env entries.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAMLIfExists(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else {
		for _, name := range []string{"postsearch.yaml", "postsearch.yml"} {
			if fileExists(name) {
				if err := cfg.loadYAML(name); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAMLIfExists(path string) error {
	if !fileExists(path) {
		return nil
	}
	return c.loadYAML(path)
}

// loadYAML overlays the keys present in the file onto c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// POSTS_BUCKET_NAME and PATH_EFS are the deployment's names; every other
// key uses the POSTSEARCH_ prefix. Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("POSTS_BUCKET_NAME"); v != "" {
		c.Source.Bucket = v
	}
	if v := os.Getenv("PATH_EFS"); v != "" {
		c.Index.Path = v
	}

	if v := os.Getenv("POSTSEARCH_SOURCE_BACKEND"); v != "" {
		c.Source.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("POSTSEARCH_BUCKET"); v != "" {
		c.Source.Bucket = v
	}
	if v := os.Getenv("POSTSEARCH_PREFIX"); v != "" {
		c.Source.Prefix = v
	}
	if v := os.Getenv("POSTSEARCH_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Source.Concurrency = n
		}
	}
	if v := os.Getenv("POSTSEARCH_FS_ROOT"); v != "" {
		c.Source.FSRoot = v
	}
	if v := os.Getenv("POSTSEARCH_REDIS_ADDR"); v != "" {
		c.Source.RedisAddr = v
	}
	if v := os.Getenv("POSTSEARCH_REDIS_PASSWORD"); v != "" {
		c.Source.RedisPassword = v
	}
	if v := os.Getenv("POSTSEARCH_S3_REGION"); v != "" {
		c.Source.S3Region = v
	}
	if v := os.Getenv("POSTSEARCH_S3_ENDPOINT"); v != "" {
		c.Source.S3Endpoint = v
	}

	if v := os.Getenv("POSTSEARCH_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("POSTSEARCH_MEMORY_BUDGET_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.MemoryBudgetMB = n
		}
	}

	if v := os.Getenv("POSTSEARCH_BUILD_SCHEDULE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Build.Schedule = d
		}
	}
	if v := os.Getenv("POSTSEARCH_STRICT_PARSE"); v != "" {
		c.Build.StrictParse = parseBool(v)
	}
	if v := os.Getenv("POSTSEARCH_BUILD_WATCH"); v != "" {
		c.Build.Watch = parseBool(v)
	}

	if v := os.Getenv("POSTSEARCH_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("POSTSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the configuration for values that can never work.
func (c *Config) Validate() error {
	switch c.Source.Backend {
	case BackendS3, BackendRedis, BackendFS:
	default:
		return fmt.Errorf("source.backend must be 's3', 'redis' or 'fs', got %q", c.Source.Backend)
	}
	if c.Source.Concurrency < 1 {
		return fmt.Errorf("source.concurrency must be at least 1, got %d", c.Source.Concurrency)
	}
	if c.Source.PageSize < 1 {
		return fmt.Errorf("source.page_size must be at least 1, got %d", c.Source.PageSize)
	}
	if strings.TrimSpace(c.Index.Path) == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if c.Index.MemoryBudgetMB < 1 {
		return fmt.Errorf("index.memory_budget_mb must be at least 1, got %d", c.Index.MemoryBudgetMB)
	}
	if c.Build.Schedule < 0 {
		return fmt.Errorf("build.schedule must not be negative, got %s", c.Build.Schedule)
	}
	if c.Build.Watch && c.Source.Backend != BackendFS {
		return fmt.Errorf("build.watch requires the fs backend, got %q", c.Source.Backend)
	}
	if c.Search.Limit < 1 {
		return fmt.Errorf("search.limit must be at least 1, got %d", c.Search.Limit)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// RequireSource reports whether enough is configured to read posts.
// Query-only commands never call it.
func (c *Config) RequireSource() error {
	if c.Source.Bucket == "" {
		return fmt.Errorf("source.bucket is not set (POSTS_BUCKET_NAME)")
	}
	return nil
}

// IndexDir returns the directory holding the index itself.
func (c *Config) IndexDir() string {
	return filepath.Join(c.Index.Path, IndexDirName)
}

// MemoryBudgetBytes returns the writer budget in bytes.
func (c *Config) MemoryBudgetBytes() uint64 {
	return uint64(c.Index.MemoryBudgetMB) * 1000 * 1000
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
