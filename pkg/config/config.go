// Package config loads and validates vecta configuration from a YAML or TOML
// document with environment-variable overrides. It provides typed structs
// for every subsystem (Indexing rules, Indexer, Search, Server, Redis, Kafka,
// Postgres, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/vecta/internal/walker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Indexing IndexingConfig `yaml:"indexing" toml:"indexing"`
	Schema   []FieldConfig  `yaml:"schema,omitempty" toml:"schema,omitempty"`
	Indexer  IndexerConfig  `yaml:"indexer" toml:"indexer"`
	Search   SearchConfig   `yaml:"search" toml:"search"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Redis    RedisConfig    `yaml:"redis" toml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" toml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// IndexingConfig names the directories to index and the rules that filter
// what is found under them.
type IndexingConfig struct {
	Directories []string       `yaml:"directories" toml:"directories"`
	Inclusions  InclusionRules `yaml:"inclusions" toml:"inclusions"`
	Exclusions  ExclusionRules `yaml:"exclusions" toml:"exclusions"`
}

type InclusionRules struct {
	Files       []string `yaml:"included_files" toml:"included_files"`
	Directories []string `yaml:"included_directories" toml:"included_directories"`
	Extensions  []string `yaml:"included_extensions" toml:"included_extensions"`
}

type ExclusionRules struct {
	Files       []string `yaml:"excluded_files" toml:"excluded_files"`
	Directories []string `yaml:"excluded_directories" toml:"excluded_directories"`
	Extensions  []string `yaml:"excluded_extensions" toml:"excluded_extensions"`
}

// FieldConfig declares one schema field. An empty schema section means the
// default title/body schema.
type FieldConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Indexed  bool   `yaml:"indexed" toml:"indexed"`
	Stored   bool   `yaml:"stored" toml:"stored"`
	Analyzer string `yaml:"analyzer,omitempty" toml:"analyzer,omitempty"`
}

// IndexerConfig controls the index writer's memory budget, file limits and
// segment merge policy.
type IndexerConfig struct {
	DataDir                string `yaml:"dataDir" toml:"dataDir"`
	WriteBudget            int64  `yaml:"writeBudget" toml:"writeBudget"`
	MaxFileSize            int64  `yaml:"maxFileSize" toml:"maxFileSize"`
	MergePolicy            string `yaml:"mergePolicy" toml:"mergePolicy"`
	MaxSegmentsBeforeMerge int    `yaml:"maxSegmentsBeforeMerge" toml:"maxSegmentsBeforeMerge"`
	IndexBinaryNames       bool   `yaml:"indexBinaryNames" toml:"indexBinaryNames"`
	ReaderCacheSize        int    `yaml:"readerCacheSize" toml:"readerCacheSize"`
}

// SearchConfig controls result limits and the local query cache.
type SearchConfig struct {
	DefaultLimit int      `yaml:"defaultLimit" toml:"defaultLimit"`
	MaxResults   int      `yaml:"maxResults" toml:"maxResults"`
	CacheSize    int      `yaml:"cacheSize" toml:"cacheSize"`
	CacheTTL     Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// ServerConfig holds HTTP server settings for vecta serve.
type ServerConfig struct {
	Port            int      `yaml:"port" toml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
	RequestTimeout  Duration `yaml:"requestTimeout" toml:"requestTimeout"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool     `yaml:"enabled" toml:"enabled"`
	Addr     string   `yaml:"addr" toml:"addr"`
	Password string   `yaml:"password" toml:"password"`
	DB       int      `yaml:"db" toml:"db"`
	PoolSize int      `yaml:"poolSize" toml:"poolSize"`
	CacheTTL Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled" toml:"enabled"`
	Brokers []string    `yaml:"brokers" toml:"brokers"`
	Topics  KafkaTopics `yaml:"topics" toml:"topics"`
}

// KafkaTopics maps logical event streams to their Kafka topic strings.
type KafkaTopics struct {
	IndexEvents  string `yaml:"indexEvents" toml:"indexEvents"`
	SearchEvents string `yaml:"searchEvents" toml:"searchEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run ledger.
type PostgresConfig struct {
	Enabled         bool     `yaml:"enabled" toml:"enabled"`
	Host            string   `yaml:"host" toml:"host"`
	Port            int      `yaml:"port" toml:"port"`
	Database        string   `yaml:"database" toml:"database"`
	User            string   `yaml:"user" toml:"user"`
	Password        string   `yaml:"password" toml:"password"`
	SSLMode         string   `yaml:"sslMode" toml:"sslMode"`
	MaxOpenConns    int      `yaml:"maxOpenConns" toml:"maxOpenConns"`
	MaxIdleConns    int      `yaml:"maxIdleConns" toml:"maxIdleConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime" toml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level, format and destination.
// An empty File logs to stderr.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// MetricsConfig controls Prometheus metrics. Pushgateway, when set, receives
// the metrics of one-shot CLI runs.
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Pushgateway string `yaml:"pushgateway,omitempty" toml:"pushgateway,omitempty"`
	Job         string `yaml:"job" toml:"job"`
}

// Duration is a time.Duration written as a string such as "30s" in both
// YAML and TOML documents.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Load reads a config document (if provided) and applies environment-variable
// overrides. Files ending in .toml are decoded as TOML, everything else as
// YAML. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Write serialises cfg to path, choosing the format by extension like Load.
func Write(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// Default returns a Config suitable for a local workspace. The data
// directory is left empty; the workspace fills it in.
func Default() *Config {
	return &Config{
		Indexing: IndexingConfig{
			Directories: []string{},
			Exclusions: ExclusionRules{
				Extensions: []string{".bin"},
			},
		},
		Indexer: IndexerConfig{
			WriteBudget:            64 << 20,
			MaxFileSize:            10 << 20,
			MergePolicy:            "all",
			MaxSegmentsBeforeMerge: 8,
			ReaderCacheSize:        64,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			CacheSize:    256,
			CacheTTL:     Duration(5 * time.Minute),
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			RequestTimeout:  Duration(10 * time.Second),
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: Duration(60 * time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				IndexEvents:  "vecta.index",
				SearchEvents: "vecta.search",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "vecta",
			User:            "vecta",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "vecta",
		},
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var problems []string
	if c.Indexer.WriteBudget < 0 {
		problems = append(problems, "indexer.writeBudget must not be negative")
	}
	if c.Indexer.MaxFileSize < 0 {
		problems = append(problems, "indexer.maxFileSize must not be negative")
	}
	switch c.Indexer.MergePolicy {
	case "", "all", "threshold":
	default:
		problems = append(problems, fmt.Sprintf("indexer.mergePolicy %q is not one of all, threshold", c.Indexer.MergePolicy))
	}
	if c.Indexer.MergePolicy == "threshold" && c.Indexer.MaxSegmentsBeforeMerge < 1 {
		problems = append(problems, "indexer.maxSegmentsBeforeMerge must be at least 1")
	}
	if c.Search.DefaultLimit < 0 || c.Search.MaxResults < 0 {
		problems = append(problems, "search limits must not be negative")
	}
	if c.Search.MaxResults > 0 && c.Search.DefaultLimit > c.Search.MaxResults {
		problems = append(problems, "search.defaultLimit exceeds search.maxResults")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of json, text", c.Logging.Format))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is empty")
	}
	if len(problems) > 0 {
		return apperrors.New(apperrors.ErrInvalidInput, "load config", "", strings.Join(problems, "; "))
	}
	return nil
}

// FilterRules converts the indexing section into walker rules.
func (c *Config) FilterRules() walker.FilterRules {
	return walker.FilterRules{
		IncludedFiles:       c.Indexing.Inclusions.Files,
		IncludedDirectories: c.Indexing.Inclusions.Directories,
		IncludedExtensions:  c.Indexing.Inclusions.Extensions,
		ExcludedFiles:       c.Indexing.Exclusions.Files,
		ExcludedDirectories: c.Indexing.Exclusions.Directories,
		ExcludedExtensions:  c.Indexing.Exclusions.Extensions,
	}
}

// BuildSchema turns the schema section into a schema.Schema.
func (c *Config) BuildSchema() (*schema.Schema, error) {
	fields := make([]schema.Field, 0, len(c.Schema))
	for _, f := range c.Schema {
		var opts schema.Options
		if f.Indexed {
			opts |= schema.Indexed
		}
		if f.Stored {
			opts |= schema.Stored
		}
		fields = append(fields, schema.Field{
			Name:     f.Name,
			Kind:     schema.KindText,
			Options:  opts,
			Analyzer: f.Analyzer,
		})
	}
	return schema.Build(fields)
}

// applyEnvOverrides reads VECTA_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VECTA_INDEX_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("VECTA_INDEXING_DIRECTORIES"); v != "" {
		cfg.Indexing.Directories = splitList(v)
	}
	if v := os.Getenv("VECTA_WRITE_BUDGET"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Indexer.WriteBudget = n
		}
	}
	if v := os.Getenv("VECTA_MERGE_POLICY"); v != "" {
		cfg.Indexer.MergePolicy = v
	}
	if v := os.Getenv("VECTA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VECTA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("VECTA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VECTA_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("VECTA_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("VECTA_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("VECTA_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("VECTA_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("VECTA_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("VECTA_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VECTA_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VECTA_METRICS_PUSHGATEWAY"); v != "" {
		cfg.Metrics.Pushgateway = v
		cfg.Metrics.Enabled = true
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
