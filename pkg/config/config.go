// Package config provides the configuration system for exoseq.
// A single Config structure drives both the standalone converter and the
// batch job driver.
//
// The configuration is organized into logical sections:
//   - Conversion: window size, variables, record compression, value shape
//   - Job: output location, staging directory, workers, task timeout
//   - Reliability: retry attempts and backoff
//   - Storage: shared store region, endpoint and upload tuning
//   - Observability: logging, metrics textfile, tracing
//
// Example usage:
//
//	cfg := config.NewConfig()
//	cfg.Conversion.WindowSize = 10
//	cfg.Job.OutputDir = "s3://sims/partitions"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/exoseq/pkg/compression"
	"github.com/ajitpratap0/exoseq/pkg/errors"
)

// Config is the complete exoseq configuration.
type Config struct {
	// Conversion settings shared by every conversion in a run
	Conversion ConversionConfig `yaml:"conversion" json:"conversion" mapstructure:"conversion"`

	// Job settings for the batch driver
	Job JobConfig `yaml:"job" json:"job" mapstructure:"job"`

	// Reliability settings for retrying failed tasks
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" mapstructure:"reliability"`

	// Storage settings for remote inputs and outputs
	Storage StorageConfig `yaml:"storage" json:"storage" mapstructure:"storage"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ConversionConfig controls how a dataset is partitioned.
type ConversionConfig struct {
	// WindowSize is the number of time steps per partition
	WindowSize int `yaml:"window_size" json:"window_size" mapstructure:"window_size"`
	// Variables lists the node variables stored per step
	Variables []string `yaml:"variables" json:"variables" mapstructure:"variables"`
	// Compression selects record value compression (none, gzip, deflate, snappy, s2, lz4, zstd)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// CompressionLevel sets compression ratio vs speed (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
	// NamedValues stores (name, array) tuples even for a single variable
	NamedValues bool `yaml:"named_values" json:"named_values" mapstructure:"named_values"`
}

// JobConfig contains batch job settings.
type JobConfig struct {
	// OutputDir is the store location receiving <basename>/ subtrees
	OutputDir string `yaml:"output_dir" json:"output_dir" mapstructure:"output_dir"`
	// WorkDir is the local staging directory
	WorkDir string `yaml:"work_dir" json:"work_dir" mapstructure:"work_dir"`
	// Workers defines the number of concurrent conversions
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// TaskTimeout bounds one attempt of one conversion (0 = unlimited)
	TaskTimeout time.Duration `yaml:"task_timeout" json:"task_timeout" mapstructure:"task_timeout"`
	// ReportPath receives one JSON line per input (empty = no report)
	ReportPath string `yaml:"report_path" json:"report_path" mapstructure:"report_path"`
	// KeepStaging leaves local staging files in place after upload
	KeepStaging bool `yaml:"keep_staging" json:"keep_staging" mapstructure:"keep_staging"`
}

// ReliabilityConfig contains retry settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum attempts per task, including the first
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier" mapstructure:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
}

// StorageConfig contains shared store settings.
type StorageConfig struct {
	// Region for S3 stores
	Region string `yaml:"region" json:"region" mapstructure:"region"`
	// Endpoint overrides the S3 or GCS endpoint
	Endpoint string `yaml:"endpoint" json:"endpoint" mapstructure:"endpoint"`
	// CredentialsFile for the store (use env vars or instance roles in production)
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
	// UploadPartSize sets the multipart upload part size in bytes
	UploadPartSize int64 `yaml:"upload_part_size" json:"upload_part_size" mapstructure:"upload_part_size"`
	// UploadConcurrency limits parts transferred in parallel
	UploadConcurrency int `yaml:"upload_concurrency" json:"upload_concurrency" mapstructure:"upload_concurrency"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// LogFormat selects json or console output
	LogFormat string `yaml:"log_format" json:"log_format" mapstructure:"log_format"`
	// MetricsFile receives Prometheus metrics in textfile format on exit
	MetricsFile string `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
	// TracingExporter selects the span exporter (none, stdout)
	TracingExporter string `yaml:"tracing_exporter" json:"tracing_exporter" mapstructure:"tracing_exporter"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// NewConfig creates a Config with defaults matching the standalone
// converter: TEMP only, no compression, bare arrays for one variable.
func NewConfig() *Config {
	return &Config{
		Conversion: ConversionConfig{
			Variables:        []string{"TEMP"},
			Compression:      string(compression.None),
			CompressionLevel: int(compression.Default),
		},
		Job: JobConfig{
			WorkDir: "work",
			Workers: runtime.NumCPU(),
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
		},
		Storage: StorageConfig{
			Region:            "us-east-1",
			UploadPartSize:    16 * 1024 * 1024,
			UploadConcurrency: 4,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "console",
			TracingExporter:   "none",
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and value ranges and trims surrounding
// blanks from variable names. The window size is checked only when set;
// commands that take it positionally set it first.
func (c *Config) Validate() error {
	if c.Conversion.WindowSize < 0 {
		return configErr("window_size must be positive")
	}
	if len(c.Conversion.Variables) == 0 {
		return configErr("at least one variable is required")
	}
	for i, v := range c.Conversion.Variables {
		v = strings.TrimSpace(v)
		c.Conversion.Variables[i] = v
		if v == "" {
			return configErr("variable names cannot be empty")
		}
	}
	if _, err := c.Conversion.Algorithm(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression")
	}
	if c.Conversion.CompressionLevel < 0 || c.Conversion.CompressionLevel > 9 {
		return configErr("compression_level must be between 1 and 9")
	}
	if c.Job.Workers < 0 {
		return configErr("workers cannot be negative")
	}
	if c.Job.TaskTimeout < 0 {
		return configErr("task_timeout cannot be negative")
	}
	if c.Reliability.RetryAttempts < 0 {
		return configErr("retry_attempts cannot be negative")
	}
	if c.Reliability.RetryMultiplier != 0 && c.Reliability.RetryMultiplier < 1 {
		return configErr("retry_multiplier must be at least 1")
	}
	if c.Storage.UploadPartSize < 0 || c.Storage.UploadConcurrency < 0 {
		return configErr("upload settings cannot be negative")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return configErr("tracing_sample_rate must be between 0 and 1")
	}
	return nil
}

func configErr(msg string) error {
	return errors.New(errors.ErrorTypeConfig, msg)
}

// Algorithm returns the configured compression algorithm.
func (c *ConversionConfig) Algorithm() (compression.Algorithm, error) {
	return compression.ParseAlgorithm(c.Compression)
}

// Level returns the configured compression level.
func (c *ConversionConfig) Level() compression.Level {
	level, err := compression.ParseLevel(strconv.Itoa(c.CompressionLevel))
	if err != nil {
		return compression.Default
	}
	return level
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (j *JobConfig) GetWorkers() int {
	if j.Workers <= 0 {
		return runtime.NumCPU()
	}
	return j.Workers
}

// Attempts returns the number of attempts per task, at least 1.
func (r *ReliabilityConfig) Attempts() int {
	return max(r.RetryAttempts, 1)
}

// Backoff returns the delay before retry n (1 for the first retry):
// RetryDelay * RetryMultiplier^(n-1), capped at MaxRetryDelay.
func (r *ReliabilityConfig) Backoff(n int) time.Duration {
	if n < 1 || r.RetryDelay <= 0 {
		return 0
	}
	mult := r.RetryMultiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(r.RetryDelay) * math.Pow(mult, float64(n-1))
	if r.MaxRetryDelay > 0 && delay > float64(r.MaxRetryDelay) {
		return r.MaxRetryDelay
	}
	return time.Duration(delay)
}
