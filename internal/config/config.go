package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultAddr          = ":5000"
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultShutdownGrace = 10 * time.Second
	defaultRateLimitRPS  = 10.0
	defaultRateBurst     = 20
	defaultRateExpiresIn = 3 * time.Minute
	defaultDBPath        = "data/userd.db"
	defaultJournalMode   = "wal"
	defaultBusyTimeout   = 3 * time.Second
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultLogMaxSizeMB  = 10
	defaultLogMaxFiles   = 5
	defaultConfigFile    = "userd.toml"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Addr          string          `toml:"addr"`
	ReadTimeout   time.Duration   `toml:"read_timeout"`
	WriteTimeout  time.Duration   `toml:"write_timeout"`
	ShutdownGrace time.Duration   `toml:"shutdown_grace"`
	RateLimit     RateLimitConfig `toml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled   bool          `toml:"enabled"`
	RPS       float64       `toml:"rps"`
	Burst     int           `toml:"burst"`
	ExpiresIn time.Duration `toml:"expires_in"`
}

type StorageConfig struct {
	Path        string        `toml:"path"`
	JournalMode string        `toml:"journal_mode"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

// FlagOverrides holds command-line values that beat both the file and the
// environment. A nil field means the flag was not set.
type FlagOverrides struct {
	Addr   *string
	DBPath *string
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:          defaultAddr,
			ReadTimeout:   defaultReadTimeout,
			WriteTimeout:  defaultWriteTimeout,
			ShutdownGrace: defaultShutdownGrace,
			RateLimit: RateLimitConfig{
				Enabled:   false,
				RPS:       defaultRateLimitRPS,
				Burst:     defaultRateBurst,
				ExpiresIn: defaultRateExpiresIn,
			},
		},
		Storage: StorageConfig{
			Path:        defaultDBPath,
			JournalMode: defaultJournalMode,
			BusyTimeout: defaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load builds the effective configuration: defaults, then the TOML file,
// then USERD_* environment variables, then flag overrides, then validation.
// A missing config file is not an error.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	if err := loadAndApplyFile(resolveConfigPath(opts), &cfg); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg, opts); err != nil {
		return Config{}, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawConfig struct {
	Server  *rawServer  `toml:"server"`
	Storage *rawStorage `toml:"storage"`
	Logging *rawLogging `toml:"logging"`
}

type rawServer struct {
	Addr          *string       `toml:"addr"`
	ReadTimeout   *string       `toml:"read_timeout"`
	WriteTimeout  *string       `toml:"write_timeout"`
	ShutdownGrace *string       `toml:"shutdown_grace"`
	RateLimit     *rawRateLimit `toml:"rate_limit"`
}

type rawRateLimit struct {
	Enabled   *bool    `toml:"enabled"`
	RPS       *float64 `toml:"rps"`
	Burst     *int     `toml:"burst"`
	ExpiresIn *string  `toml:"expires_in"`
}

type rawStorage struct {
	Path        *string `toml:"path"`
	JournalMode *string `toml:"journal_mode"`
	BusyTimeout *string `toml:"busy_timeout"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	return applyRawConfig(cfg, raw)
}

func applyRawConfig(cfg *Config, raw rawConfig) error {
	if raw.Server != nil {
		setString(raw.Server.Addr, &cfg.Server.Addr)
		if err := setDuration("server.read_timeout", raw.Server.ReadTimeout, &cfg.Server.ReadTimeout); err != nil {
			return err
		}
		if err := setDuration("server.write_timeout", raw.Server.WriteTimeout, &cfg.Server.WriteTimeout); err != nil {
			return err
		}
		if err := setDuration("server.shutdown_grace", raw.Server.ShutdownGrace, &cfg.Server.ShutdownGrace); err != nil {
			return err
		}
		if rl := raw.Server.RateLimit; rl != nil {
			setBool(rl.Enabled, &cfg.Server.RateLimit.Enabled)
			setFloat(rl.RPS, &cfg.Server.RateLimit.RPS)
			setInt(rl.Burst, &cfg.Server.RateLimit.Burst)
			if err := setDuration("server.rate_limit.expires_in", rl.ExpiresIn, &cfg.Server.RateLimit.ExpiresIn); err != nil {
				return err
			}
		}
	}

	if raw.Storage != nil {
		setString(raw.Storage.Path, &cfg.Storage.Path)
		setString(raw.Storage.JournalMode, &cfg.Storage.JournalMode)
		if err := setDuration("storage.busy_timeout", raw.Storage.BusyTimeout, &cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if raw.Logging != nil {
		setString(raw.Logging.Level, &cfg.Logging.Level)
		setString(raw.Logging.Format, &cfg.Logging.Format)
		setString(raw.Logging.File, &cfg.Logging.File)
		setInt(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, opts LoadOptions) error {
	if value, ok := lookupEnv(opts, "USERD_ADDR"); ok {
		cfg.Server.Addr = value
	}

	if value, ok := lookupEnv(opts, "USERD_DB_PATH"); ok {
		cfg.Storage.Path = value
	}
	if value, ok := lookupEnv(opts, "USERD_JOURNAL_MODE"); ok {
		cfg.Storage.JournalMode = value
	}
	if value, ok := lookupEnv(opts, "USERD_BUSY_TIMEOUT"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: parse USERD_BUSY_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.Storage.BusyTimeout = d
	}

	if value, ok := lookupEnv(opts, "USERD_LOG_LEVEL"); ok {
		cfg.Logging.Level = value
	}
	if value, ok := lookupEnv(opts, "USERD_LOG_FORMAT"); ok {
		cfg.Logging.Format = value
	}
	if value, ok := lookupEnv(opts, "USERD_LOG_FILE"); ok {
		cfg.Logging.File = value
	}
	if value, ok := lookupEnv(opts, "USERD_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse USERD_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxSizeMB = parsed
	}
	if value, ok := lookupEnv(opts, "USERD_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse USERD_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		cfg.Logging.MaxFiles = parsed
	}

	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	if flags.Addr != nil {
		cfg.Server.Addr = *flags.Addr
	}
	if flags.DBPath != nil {
		cfg.Storage.Path = *flags.DBPath
	}
}

var journalModes = map[string]bool{
	"delete":   true,
	"truncate": true,
	"persist":  true,
	"memory":   true,
	"wal":      true,
	"off":      true,
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validate(cfg Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("%w: server.read_timeout must be > 0", ErrInvalidConfig)
	}
	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("%w: server.write_timeout must be > 0", ErrInvalidConfig)
	}
	if cfg.Server.ShutdownGrace <= 0 {
		return fmt.Errorf("%w: server.shutdown_grace must be > 0", ErrInvalidConfig)
	}
	if rl := cfg.Server.RateLimit; rl.Enabled {
		if rl.RPS <= 0 {
			return fmt.Errorf("%w: server.rate_limit.rps must be > 0", ErrInvalidConfig)
		}
		if rl.Burst <= 0 {
			return fmt.Errorf("%w: server.rate_limit.burst must be > 0", ErrInvalidConfig)
		}
		if rl.ExpiresIn <= 0 {
			return fmt.Errorf("%w: server.rate_limit.expires_in must be > 0", ErrInvalidConfig)
		}
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path must not be empty", ErrInvalidConfig)
	}
	if !journalModes[cfg.Storage.JournalMode] {
		return fmt.Errorf("%w: storage.journal_mode %q is not a SQLite journal mode", ErrInvalidConfig, cfg.Storage.JournalMode)
	}
	if cfg.Storage.BusyTimeout <= 0 {
		return fmt.Errorf("%w: storage.busy_timeout must be > 0", ErrInvalidConfig)
	}

	if !logLevels[cfg.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error", ErrInvalidConfig)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format must be text or json", ErrInvalidConfig)
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("%w: logging.max_size_mb must be > 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxFiles < 0 {
		return fmt.Errorf("%w: logging.max_files must be >= 0", ErrInvalidConfig)
	}

	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setBool(raw *bool, target *bool) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

func setFloat(raw *float64, target *float64) {
	if raw != nil {
		*target = *raw
	}
}

func resolveConfigPath(opts LoadOptions) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	if value, ok := lookupEnv(opts, "USERD_CONFIG"); ok {
		return value
	}
	return defaultConfigFile
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}
