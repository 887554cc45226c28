package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileEnv names the environment variable holding the optional YAML config file.
const FileEnv = "ASTRO_CONFIG_FILE"

// Options tune where Load reads from.
type Options struct {
	// File is a YAML config file. Empty falls back to $ASTRO_CONFIG_FILE.
	File string

	// Flags contributes explicitly set flags registered with RegisterFlags.
	Flags *pflag.FlagSet
}

// field describes one tagged leaf of Config.
type field struct {
	key    string
	env    string
	envAlt string
	flag   string
	def    string
	path   []int
	typ    reflect.Type
}

// Load reads configuration from defaults, $ASTRO_CONFIG_FILE and the
// environment, then validates the result.
func Load() (*Config, error) {
	return LoadWith(Options{})
}

// LoadWith is Load with an explicit config file and flag set.
func LoadWith(opts Options) (*Config, error) {
	fields := collectFields(reflect.TypeOf(Config{}), "", nil)
	k := koanf.New(".")

	// 1. Defaults from struct tags
	defaults := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.def != "" {
			defaults[f.key] = f.def
		}
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config load: defaults: %w", err)
	}

	// 2. Optional YAML file
	path := opts.File
	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config load: read %s: %w", path, err)
		}
	}

	// 3. Environment variables. Empty values count as unset and a primary
	// variable always beats its alternate.
	envKeys := make(map[string]string)
	primary := make(map[string]string)
	for _, f := range fields {
		if f.env != "" {
			envKeys[f.env] = f.key
		}
		if f.envAlt != "" {
			envKeys[f.envAlt] = f.key
			primary[f.envAlt] = f.env
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := envKeys[name]
		if !ok || value == "" {
			return "", nil
		}
		if p, alt := primary[name]; alt && os.Getenv(p) != "" {
			return "", nil
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("config load: env: %w", err)
	}

	// 4. Flags, only those explicitly set
	if opts.Flags != nil {
		flagKeys := make(map[string]string)
		for _, f := range fields {
			if f.flag != "" {
				flagKeys[f.flag] = f.key
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(fl *pflag.Flag) (string, any) {
			key, ok := flagKeys[fl.Name]
			if !ok || !fl.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, fl)
		}), nil); err != nil {
			return nil, fmt.Errorf("config load: flags: %w", err)
		}
	}

	cfg := &Config{}
	root := reflect.ValueOf(cfg).Elem()
	for _, f := range fields {
		value := stringify(k.Get(f.key))
		if value == "" {
			continue
		}
		if err := setField(root.FieldByIndex(f.path), value); err != nil {
			return nil, fmt.Errorf("config load: invalid value for %s=%q: %w", f.key, value, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// RegisterFlags defines a flag for every field carrying a flag tag.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, f := range collectFields(reflect.TypeOf(Config{}), "", nil) {
		if f.flag == "" || fs.Lookup(f.flag) != nil {
			continue
		}
		usage := "sets " + f.key
		if f.env != "" {
			usage += " (env " + f.env + ")"
		}
		if f.typ.Kind() == reflect.Bool {
			fs.Bool(f.flag, f.def == "true", usage)
			continue
		}
		fs.String(f.flag, f.def, usage)
	}
}

// collectFields recursively walks tagged struct fields, joining nested key
// tags with dots.
func collectFields(t reflect.Type, prefix string, index []int) []field {
	var out []field

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		// Skip unexported fields
		if !sf.IsExported() {
			continue
		}

		key := sf.Tag.Get("key")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		path := append(append([]int(nil), index...), i)

		// Recurse into nested structs
		if sf.Type.Kind() == reflect.Struct && sf.Type != reflect.TypeOf(time.Time{}) {
			out = append(out, collectFields(sf.Type, key, path)...)
			continue
		}

		out = append(out, field{
			key:    key,
			env:    sf.Tag.Get("env"),
			envAlt: sf.Tag.Get("envAlt"),
			flag:   sf.Tag.Get("flag"),
			def:    sf.Tag.Get("default"),
			path:   path,
			typ:    sf.Type,
		})
	}

	return out
}

// stringify flattens a koanf value into the string form setField parses.
// YAML lists become comma-separated values.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
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
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch strings.ToLower(c.Database.Driver) {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when DATABASE_DRIVER is postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required when DATABASE_DRIVER is sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("DATABASE_DRIVER (%q) must be one of: postgres, sqlite", c.Database.Driver))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, "SERVER_MAX_BODY_SIZE must be positive")
	}

	// Reader validation
	switch strings.ToLower(c.Reader.Mode) {
	case "file", "synthetic":
	default:
		errs = append(errs, fmt.Sprintf("READER_MODE (%q) must be one of: file, synthetic", c.Reader.Mode))
	}

	// Process validation
	if c.Process.MaxConcurrent <= 0 {
		errs = append(errs, "PROCESS_MAX_CONCURRENT must be positive")
	}
	if c.Process.MaxWaitTime <= 0 {
		errs = append(errs, "PROCESS_MAX_WAIT_TIME must be positive")
	}
	if c.Process.Timeout <= 0 {
		errs = append(errs, "PROCESS_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout < c.Process.Timeout {
		errs = append(errs, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must be >= PROCESS_TIMEOUT (%s)",
			c.Server.RequestTimeout, c.Process.Timeout))
	}

	// Snapshot validation
	if c.Snapshot.Enabled {
		if c.Snapshot.Dir == "" {
			errs = append(errs, "SNAPSHOT_DIR is required when snapshots are enabled")
		}
		switch strings.ToLower(c.Snapshot.Format) {
		case SnapshotCSV, SnapshotParquet:
		default:
			errs = append(errs, fmt.Sprintf("SNAPSHOT_FORMAT (%q) must be one of: csv, parquet", c.Snapshot.Format))
		}
		if c.Snapshot.Retention < 0 {
			errs = append(errs, "SNAPSHOT_RETENTION must be non-negative")
		}
		if c.Snapshot.Retention > 0 && c.Snapshot.CheckInterval <= 0 {
			errs = append(errs, "SNAPSHOT_CHECK_INTERVAL must be positive when SNAPSHOT_RETENTION is set")
		}
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ProcessLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_PROCESS must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
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
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Driver: %q, URL: [MASKED], SQLitePath: %q, MaxConns: %d, MinConns: %d}, ",
		c.Database.Driver, c.Database.SQLitePath, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Reader: {Mode: %q, Family: %q}, ", c.Reader.Mode, c.Reader.Family))
	b.WriteString(fmt.Sprintf("Process: {MaxConcurrent: %d, Timeout: %s}, ",
		c.Process.MaxConcurrent, c.Process.Timeout))
	b.WriteString(fmt.Sprintf("Snapshot: {Enabled: %v, Dir: %q, Format: %q}, ",
		c.Snapshot.Enabled, c.Snapshot.Dir, c.Snapshot.Format))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: [%d MASKED]}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
