// Package config loads the server and CLI settings from config.yaml,
// TRIAGE_* environment variables and built-in defaults, in that order of
// precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/triage-visualizer/backend/internal/layout"
)

// EnvPrefix is prepended to every environment override, e.g. TRIAGE_SERVER_PORT.
const EnvPrefix = "TRIAGE"

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Index   IndexConfig   `mapstructure:"index" yaml:"index"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Rules   RulesConfig   `mapstructure:"rules" yaml:"rules"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	EnableCORS   bool   `mapstructure:"enable_cors" yaml:"enable_cors"`
	AllowOrigins string `mapstructure:"allow_origins" yaml:"allow_origins"`
	ReadTimeout  int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec"`
	WriteTimeout int    `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec"`
	IdleTimeout  int    `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
	BodyLimit    string `mapstructure:"body_limit" yaml:"body_limit"`
	RequestLog   bool   `mapstructure:"request_log" yaml:"request_log"`
}

// StorageConfig holds on-disk locations. Relative paths are resolved
// against the directory of the config file.
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	TempDir   string `mapstructure:"temp_dir" yaml:"temp_dir"`
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// IndexConfig tunes index runs.
type IndexConfig struct {
	ViperFallback bool `mapstructure:"viper_fallback" yaml:"viper_fallback"`
	// MaxSessions is the number of index runs kept in memory.
	MaxSessions    int `mapstructure:"max_sessions" yaml:"max_sessions"`
	Workers        int `mapstructure:"workers" yaml:"workers"`
	RunTimeoutMins int `mapstructure:"run_timeout_minutes" yaml:"run_timeout_minutes"`
	CleanupMins    int `mapstructure:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
}

// LayoutConfig mirrors layout.Config.
type LayoutConfig struct {
	Scale                 float64 `mapstructure:"scale" yaml:"scale"`
	MaxDisplacementPasses int     `mapstructure:"max_displacement_passes" yaml:"max_displacement_passes"`
	CharWidth             float64 `mapstructure:"char_width" yaml:"char_width"`
	MaxGridTicks          int     `mapstructure:"max_grid_ticks" yaml:"max_grid_ticks"`
}

// RulesConfig points at the optional user marker rule file.
type RulesConfig struct {
	UserFile string `mapstructure:"user_file" yaml:"user_file"`
	Watch    bool   `mapstructure:"watch" yaml:"watch"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8089,
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "2G",
			RequestLog:   true,
		},
		Storage: StorageConfig{
			UploadDir: "./data/uploads",
			TempDir:   "./data/temp",
			ExportDir: "./data/export",
		},
		Index: IndexConfig{
			MaxSessions:    10,
			RunTimeoutMins: 30,
			CleanupMins:    5,
		},
		Layout: LayoutConfig{
			Scale:                 layout.DefaultScale,
			MaxDisplacementPasses: layout.DefaultMaxPasses,
			CharWidth:             layout.DefaultCharWidth,
			MaxGridTicks:          layout.DefaultMaxGridTicks,
		},
		Rules: RulesConfig{
			Watch: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.enable_cors", d.Server.EnableCORS)
	v.SetDefault("server.allow_origins", d.Server.AllowOrigins)
	v.SetDefault("server.read_timeout_sec", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout_sec", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout_sec", d.Server.IdleTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.request_log", d.Server.RequestLog)

	v.SetDefault("storage.upload_dir", d.Storage.UploadDir)
	v.SetDefault("storage.temp_dir", d.Storage.TempDir)
	v.SetDefault("storage.export_dir", d.Storage.ExportDir)

	v.SetDefault("index.viper_fallback", d.Index.ViperFallback)
	v.SetDefault("index.max_sessions", d.Index.MaxSessions)
	v.SetDefault("index.workers", d.Index.Workers)
	v.SetDefault("index.run_timeout_minutes", d.Index.RunTimeoutMins)
	v.SetDefault("index.cleanup_interval_minutes", d.Index.CleanupMins)

	v.SetDefault("layout.scale", d.Layout.Scale)
	v.SetDefault("layout.max_displacement_passes", d.Layout.MaxDisplacementPasses)
	v.SetDefault("layout.char_width", d.Layout.CharWidth)
	v.SetDefault("layout.max_grid_ticks", d.Layout.MaxGridTicks)

	v.SetDefault("rules.user_file", d.Rules.UserFile)
	v.SetDefault("rules.watch", d.Rules.Watch)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Load reads the configuration. With an explicit path the file is created
// with defaults when it does not exist. With an empty path config.yaml is
// searched for in the working directory and $HOME/.triage, and defaults
// apply when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := DefaultConfig().Save(path); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".triage"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if used := v.ConfigFileUsed(); used != "" {
		cfg.resolvePaths(filepath.Dir(used))
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Layout.Scale <= 0 {
		return fmt.Errorf("invalid layout.scale %v", c.Layout.Scale)
	}
	if c.Layout.CharWidth <= 0 {
		return fmt.Errorf("invalid layout.char_width %v", c.Layout.CharWidth)
	}
	return nil
}

// Save writes the configuration as YAML, replacing path atomically.
func (c *Config) Save(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	content := append([]byte("# Log triage configuration\n# Created on first run\n\n"), out...)
	if err := renameio.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on the config file location.
func (c *Config) resolvePaths(configDir string) {
	for _, p := range []*string{&c.Storage.UploadDir, &c.Storage.TempDir, &c.Storage.ExportDir, &c.Rules.UserFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LayoutEngine returns the layout engine settings.
func (c *Config) LayoutEngine() layout.Config {
	return layout.Config{
		Scale:        c.Layout.Scale,
		MaxPasses:    c.Layout.MaxDisplacementPasses,
		CharWidth:    c.Layout.CharWidth,
		MaxGridTicks: c.Layout.MaxGridTicks,
	}
}

// EnsureDirectories creates all data directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.UploadDir, c.Storage.TempDir, c.Storage.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
