// Package config provides centralized configuration management for dd2db.
// Values come from struct-tag defaults, an optional YAML file and
// environment variables, in increasing order of precedence; command-line
// flags are applied on top by the CLI. Everything is validated before use.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Export   ExportConfig   `yaml:"export"`
	Probe    ProbeConfig    `yaml:"probe"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ExportConfig holds dump export settings.
type ExportConfig struct {
	// DataDir holds the dump files (default: current directory)
	DataDir string `env:"DD2DB_DATA_DIR" default:"." yaml:"data_dir"`

	// OutputDir receives the CSV files (default: current directory)
	OutputDir string `env:"DD2DB_OUTPUT_DIR" default:"." yaml:"output_dir"`

	// Kinds lists the entity kinds to export; "all" selects every kind
	Kinds []string `env:"DD2DB_EXPORT" yaml:"kinds"`

	// Limit caps the entities exported per kind; 0 means no limit
	Limit int64 `env:"DD2DB_LIMIT" default:"0" yaml:"limit"`

	// Compression is the output codec: none, bz2, gz, zst, lz4 (default: none)
	Compression string `env:"DD2DB_COMPRESSION" default:"none" yaml:"compression"`

	// DryRun runs the whole pipeline without writing files
	DryRun bool `env:"DD2DB_DRY_RUN" default:"false" yaml:"dry_run"`

	// Debug logs every exported entity
	Debug bool `env:"DD2DB_DEBUG" default:"false" yaml:"debug"`

	// Parallel is the number of kinds exported at once (default: 1)
	Parallel int `env:"DD2DB_PARALLEL" default:"1" yaml:"parallel"`

	// ProgressEvery is the number of entities between progress updates
	ProgressEvery int64 `env:"DD2DB_PROGRESS_EVERY" default:"10000" yaml:"progress_every"`

	// BufferSize is the write buffer per output file in bytes (default: 256KB)
	BufferSize int `env:"DD2DB_BUFFER_SIZE" default:"262144" yaml:"buffer_size"`
}

// ProbeConfig holds the optional entity count probe settings.
type ProbeConfig struct {
	// Enabled asks the Discogs API for entity counts (default: false)
	Enabled bool `env:"DD2DB_APICOUNTS" default:"false" yaml:"enabled"`

	// URL is the API root that reports statistics
	URL string `env:"DD2DB_PROBE_URL" default:"https://api.discogs.com/" yaml:"url"`

	// Timeout bounds the probe request (default: 5s)
	Timeout time.Duration `env:"DD2DB_PROBE_TIMEOUT" default:"5s" yaml:"timeout"`
}

// DatabaseConfig holds loader settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" yaml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4" yaml:"max_conns"`

	// SQLDir holds the DDL files run by postgres init/optimize/drop
	SQLDir string `env:"DD2DB_SQL_DIR" yaml:"sql_dir"`

	// SQLitePath is the SQLite database file (default: discogs.db)
	SQLitePath string `env:"DD2DB_SQLITE_PATH" default:"discogs.db" yaml:"sqlite_path"`

	// BatchSize is the number of rows per SQLite transaction (default: 1000)
	BatchSize int `env:"DD2DB_BATCH_SIZE" default:"1000" yaml:"batch_size"`

	// Timeout bounds a single file import (default: 0, no limit)
	Timeout time.Duration `env:"DD2DB_DB_TIMEOUT" default:"0s" yaml:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`

	// File receives log output instead of stderr when set
	File string `env:"LOG_FILE" yaml:"file"`
}
