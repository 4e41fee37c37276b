// Package config provides configuration loading and validation for the
// Tessera compactor. Supports YAML files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a compactor process.
type Config struct {
	WAL           WALConfig           `yaml:"wal"`
	Compactor     CompactorConfig     `yaml:"compactor"`
	Metadata      MetadataConfig      `yaml:"metadata"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Index         IndexConfig         `yaml:"index"`
	Notify        NotifyConfig        `yaml:"notify"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// WALConfig describes the local WAL directory layout.
type WALConfig struct {
	// RootDir is the directory the ingestion writers flush segments into.
	RootDir string `yaml:"rootDir" env:"TESSERA_WAL_ROOT"`

	// SegmentSuffix selects which files in RootDir are segments.
	SegmentSuffix string `yaml:"segmentSuffix" env:"TESSERA_WAL_SUFFIX"`
}

// CompactorConfig holds the merge scheduling thresholds.
type CompactorConfig struct {
	// IntervalMs is the sleep between steady-state passes.
	IntervalMs int64 `yaml:"intervalMs" env:"TESSERA_COMPACT_INTERVAL_MS"`

	// Workers is the number of concurrent partition merge workers.
	Workers int `yaml:"workers" env:"TESSERA_COMPACT_WORKERS"`

	// ScanBatchSize bounds how many segment paths one scan batch carries.
	ScanBatchSize int `yaml:"scanBatchSize" env:"TESSERA_COMPACT_SCAN_BATCH"`

	// MaxFileSizeBytes caps the original and compressed size of one merged file.
	MaxFileSizeBytes int64 `yaml:"maxFileSizeBytes" env:"TESSERA_COMPACT_MAX_FILE_SIZE"`

	// MinFileSizeBytes is the small-batch threshold: groups below it are
	// skipped until they grow or turn stale.
	MinFileSizeBytes int64 `yaml:"minFileSizeBytes" env:"TESSERA_COMPACT_MIN_FILE_SIZE"`

	// MaxSegmentAgeMs flushes an undersized group anyway once its oldest
	// segment exceeds this age. 0 disables staleness flushing.
	MaxSegmentAgeMs int64 `yaml:"maxSegmentAgeMs" env:"TESSERA_COMPACT_MAX_SEGMENT_AGE_MS"`

	// FieldLimit caps the union field count of a merged file.
	// 0 means unlimited. Streams may override with a lower limit.
	FieldLimit int `yaml:"fieldLimit" env:"TESSERA_COMPACT_FIELD_LIMIT"`

	// DefaultRetentionDays applies when a stream has no retention setting.
	// 0 means data never expires.
	DefaultRetentionDays int `yaml:"defaultRetentionDays" env:"TESSERA_COMPACT_RETENTION_DAYS"`

	// DrainBackoffMinMs and DrainBackoffMaxMs bound the exponential backoff
	// used while draining with work still pending.
	DrainBackoffMinMs int64 `yaml:"drainBackoffMinMs" env:"TESSERA_COMPACT_DRAIN_BACKOFF_MIN_MS"`
	DrainBackoffMaxMs int64 `yaml:"drainBackoffMaxMs" env:"TESSERA_COMPACT_DRAIN_BACKOFF_MAX_MS"`
}

// MetadataConfig configures the Oxia metadata store.
type MetadataConfig struct {
	OxiaEndpoint string `yaml:"oxiaEndpoint" env:"TESSERA_OXIA_ENDPOINT"`
	Namespace    string `yaml:"namespace" env:"TESSERA_OXIA_NAMESPACE"`
}

// AccountConfig is one object storage account.
type AccountConfig struct {
	Name      string `yaml:"name"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// ObjectStoreConfig lists the storage accounts merged files are routed across.
type ObjectStoreConfig struct {
	Accounts []AccountConfig `yaml:"accounts"`
}

// IndexConfig configures inverted index generation for merged files.
type IndexConfig struct {
	Enabled bool `yaml:"enabled" env:"TESSERA_INDEX_ENABLED"`

	// Codec compresses index blocks: none, snappy, lz4 or zstd.
	Codec string `yaml:"codec" env:"TESSERA_INDEX_CODEC"`
}

// NotifyConfig configures the post-merge Kafka event publisher.
type NotifyConfig struct {
	Enabled bool     `yaml:"enabled" env:"TESSERA_NOTIFY_ENABLED"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env:"TESSERA_NOTIFY_TOPIC"`
}

// ObservabilityConfig configures metrics and logging.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"TESSERA_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"TESSERA_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"TESSERA_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		WAL: WALConfig{
			RootDir:       "./data/wal",
			SegmentSuffix: ".parquet",
		},
		Compactor: CompactorConfig{
			IntervalMs:           10_000,
			Workers:              4,
			ScanBatchSize:        1000,
			MaxFileSizeBytes:     256 * 1024 * 1024, // 256MB
			MinFileSizeBytes:     8 * 1024 * 1024,   // 8MB
			MaxSegmentAgeMs:      3_600_000,         // 1 hour
			FieldLimit:           0,
			DefaultRetentionDays: 0,
			DrainBackoffMinMs:    100,
			DrainBackoffMaxMs:    10_000,
		},
		Metadata: MetadataConfig{
			OxiaEndpoint: "localhost:6648",
			Namespace:    "tessera",
		},
		Index: IndexConfig{
			Enabled: false,
			Codec:   "zstd",
		},
		Notify: NotifyConfig{
			Enabled: false,
			Topic:   "tessera.merged-files",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads configuration from the given YAML file (if path is non-empty),
// layered over defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.WAL.RootDir == "" {
		return fmt.Errorf("config: wal.rootDir is required")
	}
	if c.Compactor.Workers <= 0 {
		return fmt.Errorf("config: compactor.workers must be positive")
	}
	if c.Compactor.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("config: compactor.maxFileSizeBytes must be positive")
	}
	if c.Compactor.MinFileSizeBytes > c.Compactor.MaxFileSizeBytes {
		return fmt.Errorf("config: compactor.minFileSizeBytes exceeds maxFileSizeBytes")
	}
	switch c.Index.Codec {
	case "", "none", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("config: unknown index codec %q", c.Index.Codec)
	}
	return nil
}

// Interval returns the steady-state pass interval as a Duration.
func (c *CompactorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// MaxSegmentAge returns the staleness flush threshold as a Duration.
func (c *CompactorConfig) MaxSegmentAge() time.Duration {
	return time.Duration(c.MaxSegmentAgeMs) * time.Millisecond
}

// DrainBackoffMin returns the lower drain backoff bound as a Duration.
func (c *CompactorConfig) DrainBackoffMin() time.Duration {
	return time.Duration(c.DrainBackoffMinMs) * time.Millisecond
}

// DrainBackoffMax returns the upper drain backoff bound as a Duration.
func (c *CompactorConfig) DrainBackoffMax() time.Duration {
	return time.Duration(c.DrainBackoffMaxMs) * time.Millisecond
}

func applyEnv(cfg *Config) {
	setString(&cfg.WAL.RootDir, "TESSERA_WAL_ROOT")
	setString(&cfg.WAL.SegmentSuffix, "TESSERA_WAL_SUFFIX")

	setInt64(&cfg.Compactor.IntervalMs, "TESSERA_COMPACT_INTERVAL_MS")
	setInt(&cfg.Compactor.Workers, "TESSERA_COMPACT_WORKERS")
	setInt(&cfg.Compactor.ScanBatchSize, "TESSERA_COMPACT_SCAN_BATCH")
	setInt64(&cfg.Compactor.MaxFileSizeBytes, "TESSERA_COMPACT_MAX_FILE_SIZE")
	setInt64(&cfg.Compactor.MinFileSizeBytes, "TESSERA_COMPACT_MIN_FILE_SIZE")
	setInt64(&cfg.Compactor.MaxSegmentAgeMs, "TESSERA_COMPACT_MAX_SEGMENT_AGE_MS")
	setInt(&cfg.Compactor.FieldLimit, "TESSERA_COMPACT_FIELD_LIMIT")
	setInt(&cfg.Compactor.DefaultRetentionDays, "TESSERA_COMPACT_RETENTION_DAYS")
	setInt64(&cfg.Compactor.DrainBackoffMinMs, "TESSERA_COMPACT_DRAIN_BACKOFF_MIN_MS")
	setInt64(&cfg.Compactor.DrainBackoffMaxMs, "TESSERA_COMPACT_DRAIN_BACKOFF_MAX_MS")

	setString(&cfg.Metadata.OxiaEndpoint, "TESSERA_OXIA_ENDPOINT")
	setString(&cfg.Metadata.Namespace, "TESSERA_OXIA_NAMESPACE")

	setBool(&cfg.Index.Enabled, "TESSERA_INDEX_ENABLED")
	setString(&cfg.Index.Codec, "TESSERA_INDEX_CODEC")

	setBool(&cfg.Notify.Enabled, "TESSERA_NOTIFY_ENABLED")
	setString(&cfg.Notify.Topic, "TESSERA_NOTIFY_TOPIC")

	setString(&cfg.Observability.MetricsAddr, "TESSERA_METRICS_ADDR")
	setString(&cfg.Observability.LogLevel, "TESSERA_LOG_LEVEL")
	setString(&cfg.Observability.LogFormat, "TESSERA_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
