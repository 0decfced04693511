package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the astrocat API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Blob        BlobConfig        `yaml:"blob"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	CrossMatch  CrossMatchConfig  `yaml:"crossmatch"`
	Photometry  PhotometryConfig  `yaml:"photometry"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Quality     QualityConfig     `yaml:"quality"`
	Variability VariabilityConfig `yaml:"variability"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// RedisConfig holds the spatial store connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// PostgresConfig holds the relational store settings.
type PostgresConfig struct {
	URL                string `yaml:"url"`
	MaxConnections     int32  `yaml:"max_connections"`
	MaxConnLifetimeSec int    `yaml:"max_conn_lifetime_sec"`
	MaxConnIdleSec     int    `yaml:"max_conn_idle_sec"`
	Migrate            *bool  `yaml:"migrate"` // default true
}

// BlobConfig holds object store settings. An empty endpoint disables the blob store.
type BlobConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	UseSSL    bool     `yaml:"use_ssl"`
	Region    string   `yaml:"region"`
	Buckets   []string `yaml:"buckets"`
}

// CatalogConfig holds query limits.
type CatalogConfig struct {
	DefaultMaxResults int     `yaml:"default_max_results"`
	MaxResults        int     `yaml:"max_results"`
	MaxBoxResults     int     `yaml:"max_box_results"`
	BatchSize         int     `yaml:"batch_size"`
	ScanPageSize      int     `yaml:"scan_page_size"`
	HighPMThreshold   float64 `yaml:"high_pm_threshold_mas_yr"`
	NearestCandidates int     `yaml:"nearest_candidates"`
}

// CrossMatchConfig holds cross-match defaults.
type CrossMatchConfig struct {
	DefaultRadiusArcsec float64 `yaml:"default_radius_arcsec"`
	Version             string  `yaml:"version"`
}

// PhotometryConfig overrides the built-in calibration tables, keyed by filter.
type PhotometryConfig struct {
	ZeroPoints map[string]float64 `yaml:"zero_points"`
	Extinction map[string]float64 `yaml:"extinction"`
}

// WorkflowConfig holds workflow registry settings.
type WorkflowConfig struct {
	Backend    string `yaml:"backend"` // postgres, memory (default: postgres)
	HistoryCap int    `yaml:"history_cap"`
}

// QualityConfig bounds quality assessments.
type QualityConfig struct {
	MaxSources int `yaml:"max_sources"`
}

// VariabilityConfig bounds light-curve analysis.
type VariabilityConfig struct {
	MaxPoints int `yaml:"max_points"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "astrocat:"
	}
	if c.Postgres.Migrate == nil {
		on := true
		c.Postgres.Migrate = &on
	}
	if c.Catalog.DefaultMaxResults <= 0 {
		c.Catalog.DefaultMaxResults = 1000
	}
	if c.Catalog.MaxResults <= 0 {
		c.Catalog.MaxResults = 10000
	}
	if c.Catalog.MaxBoxResults <= 0 {
		c.Catalog.MaxBoxResults = 10000
	}
	if c.Catalog.BatchSize <= 0 {
		c.Catalog.BatchSize = 100
	}
	if c.Catalog.ScanPageSize <= 0 {
		c.Catalog.ScanPageSize = 1000
	}
	if c.Catalog.HighPMThreshold <= 0 {
		c.Catalog.HighPMThreshold = 100
	}
	if c.Catalog.NearestCandidates <= 0 {
		c.Catalog.NearestCandidates = 8
	}
	if c.CrossMatch.DefaultRadiusArcsec <= 0 {
		c.CrossMatch.DefaultRadiusArcsec = 1
	}
	if c.CrossMatch.Version == "" {
		c.CrossMatch.Version = "1.0"
	}
	if c.Workflow.Backend == "" {
		c.Workflow.Backend = "postgres"
	}
	if c.Workflow.HistoryCap <= 0 {
		c.Workflow.HistoryCap = 1000
	}
	if c.Quality.MaxSources <= 0 {
		c.Quality.MaxSources = 100000
	}
	if c.Variability.MaxPoints <= 0 {
		c.Variability.MaxPoints = 5000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required")
	}
	switch c.Workflow.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("workflow.backend must be \"postgres\" or \"memory\", got %q", c.Workflow.Backend)
	}
	if c.Catalog.DefaultMaxResults > c.Catalog.MaxResults {
		return fmt.Errorf("catalog.default_max_results (%d) exceeds catalog.max_results (%d)",
			c.Catalog.DefaultMaxResults, c.Catalog.MaxResults)
	}
	if c.Variability.MaxPoints > 5000 {
		return fmt.Errorf("variability.max_points must be at most 5000, got %d", c.Variability.MaxPoints)
	}
	if c.Blob.Endpoint != "" && (c.Blob.AccessKey == "" || c.Blob.SecretKey == "") {
		return fmt.Errorf("blob.access_key and blob.secret_key are required with blob.endpoint")
	}
	return nil
}

// BlobEnabled reports whether the blob store is configured.
func (c *Config) BlobEnabled() bool { return c.Blob.Endpoint != "" }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
