package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dd2db/internal/codec"
	"github.com/JonMunkholm/dd2db/internal/dump"
)

// Load builds the configuration: tag defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. The result is
// not validated; call Validate after applying flags.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := walk(reflect.ValueOf(cfg).Elem(), applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := walk(reflect.ValueOf(cfg).Elem(), applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML document at path. Keys absent from the file
// keep their current value; unknown keys are an error.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// fieldFunc handles one tagged leaf field.
type fieldFunc func(field reflect.StructField, value reflect.Value) error

// walk calls fn for every settable non-struct field, recursing into
// nested structs.
func walk(v reflect.Value, fn fieldFunc) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := walk(fieldVal, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(field, fieldVal); err != nil {
			return err
		}
	}
	return nil
}

func applyDefault(field reflect.StructField, value reflect.Value) error {
	def := field.Tag.Get("default")
	if def == "" {
		return nil
	}
	if err := setField(value, def); err != nil {
		return fmt.Errorf("default for %s=%q: %w", field.Name, def, err)
	}
	return nil
}

func applyEnv(field reflect.StructField, value reflect.Value) error {
	envName := field.Tag.Get("env")
	if envName == "" {
		return nil
	}

	// Try primary env var, then alternate
	raw := os.Getenv(envName)
	if raw == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			raw = os.Getenv(alt)
		}
	}
	if raw == "" {
		return nil
	}

	if err := setField(value, raw); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", envName, raw, err)
	}
	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Split comma-separated values, trim whitespace
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// ExportKinds resolves Export.Kinds into entity kinds in export order,
// without duplicates. "all" selects every kind.
func (c *Config) ExportKinds() ([]dump.Kind, error) {
	selected := map[dump.Kind]bool{}
	for _, name := range c.Export.Kinds {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			for _, k := range dump.Kinds {
				selected[k] = true
			}
			continue
		}
		k, err := dump.ParseKind(name)
		if err != nil {
			return nil, err
		}
		selected[k] = true
	}

	var kinds []dump.Kind
	for _, k := range dump.Kinds {
		if selected[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Export validation
	if _, err := c.ExportKinds(); err != nil {
		errs = append(errs, fmt.Sprintf("DD2DB_EXPORT: %v", err))
	}
	if _, err := codec.Parse(c.Export.Compression); err != nil {
		errs = append(errs, fmt.Sprintf("DD2DB_COMPRESSION: %v", err))
	}
	if c.Export.Limit < 0 {
		errs = append(errs, "DD2DB_LIMIT must be non-negative")
	}
	if c.Export.Parallel < 1 || c.Export.Parallel > len(dump.Kinds) {
		errs = append(errs, fmt.Sprintf("DD2DB_PARALLEL (%d) must be 1-%d", c.Export.Parallel, len(dump.Kinds)))
	}
	if c.Export.ProgressEvery <= 0 {
		errs = append(errs, "DD2DB_PROGRESS_EVERY must be positive")
	}
	if c.Export.BufferSize <= 0 {
		errs = append(errs, "DD2DB_BUFFER_SIZE must be positive")
	}

	// Probe validation
	if c.Probe.Enabled {
		if u, err := url.Parse(c.Probe.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("DD2DB_PROBE_URL (%q) must be an absolute URL", c.Probe.URL))
		}
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, "DD2DB_PROBE_TIMEOUT must be positive")
	}

	// Database validation
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.BatchSize <= 0 {
		errs = append(errs, "DD2DB_BATCH_SIZE must be positive")
	}
	if c.Database.Timeout < 0 {
		errs = append(errs, "DD2DB_DB_TIMEOUT must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Export: {DataDir: %q, OutputDir: %q, Kinds: %v, Limit: %d, Compression: %q, DryRun: %v, Parallel: %d}, ",
		c.Export.DataDir, c.Export.OutputDir, c.Export.Kinds, c.Export.Limit, c.Export.Compression, c.Export.DryRun, c.Export.Parallel))
	b.WriteString(fmt.Sprintf("Probe: {Enabled: %v, URL: %q}, ", c.Probe.Enabled, c.Probe.URL))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], SQLitePath: %q, BatchSize: %d}, ",
		c.Database.SQLitePath, c.Database.BatchSize))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
