// Package config provides configuration management for mimicry using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files (.mimicry.yml), environment
// variable overrides with the MIMICRY_ prefix, defaults, and validation. It
// covers the HTTP server, the registry store, the preview pipeline timings,
// the gallery, the file watcher and logging.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Registry    RegistryConfig    `mapstructure:"registry" yaml:"registry"`
	Preview     PreviewConfig     `mapstructure:"preview" yaml:"preview"`
	Gallery     GalleryConfig     `mapstructure:"gallery" yaml:"gallery"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment"`
}

// RegistryConfig selects and locates the registry store.
type RegistryConfig struct {
	// Dir holds the generated .tsx sources and, for the json backend, the registry file.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// File is the registry document name inside Dir.
	File string `mapstructure:"file" yaml:"file"`
	// Backend is "json" (default) or "sqlite".
	Backend      string `mapstructure:"backend" yaml:"backend"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// PreviewConfig holds the timings of the preview pipeline.
type PreviewConfig struct {
	ResolveAttempts int           `mapstructure:"resolve_attempts" yaml:"resolve_attempts"`
	ResolveDelay    time.Duration `mapstructure:"resolve_delay" yaml:"resolve_delay"`
	MountDelay      time.Duration `mapstructure:"mount_delay" yaml:"mount_delay"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout" yaml:"render_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Diagnostics enables tree-sitter parsing of transformed sources; findings are logged only.
	Diagnostics bool `mapstructure:"diagnostics" yaml:"diagnostics"`
}

type GalleryConfig struct {
	ImagesDir string `mapstructure:"images_dir" yaml:"images_dir"`
}

type DevelopmentConfig struct {
	Watch         bool          `mapstructure:"watch" yaml:"watch"`
	DebounceDelay time.Duration `mapstructure:"debounce_delay" yaml:"debounce_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", false)
	v.SetDefault("server.environment", "development")

	v.SetDefault("registry.dir", "./generated_components")
	v.SetDefault("registry.file", "registry.json")
	v.SetDefault("registry.backend", BackendJSON)
	v.SetDefault("registry.database_path", ".mimicry/registry.db")

	v.SetDefault("preview.resolve_attempts", 3)
	v.SetDefault("preview.resolve_delay", 200*time.Millisecond)
	v.SetDefault("preview.mount_delay", 100*time.Millisecond)
	v.SetDefault("preview.render_timeout", 5*time.Second)
	v.SetDefault("preview.poll_interval", 1500*time.Millisecond)
	v.SetDefault("preview.diagnostics", false)

	v.SetDefault("gallery.images_dir", "./outputs")

	v.SetDefault("development.watch", true)
	v.SetDefault("development.debounce_delay", 300*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults for unset keys.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// --log-level is bound at the root as a flat key
	if v.IsSet("log-level") {
		config.Log.Level = v.GetString("log-level")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := LoadFrom(viper.New())
	if err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

// RegistryFilePath is the absolute-or-relative path of the registry document.
func (c *Config) RegistryFilePath() string {
	return filepath.Join(c.Registry.Dir, c.Registry.File)
}

// Address is the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateRegistryConfig(&config.Registry); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}

	if err := validatePreviewConfig(&config.Preview); err != nil {
		return fmt.Errorf("preview config: %w", err)
	}

	if err := validatePath(config.Gallery.ImagesDir); err != nil {
		return fmt.Errorf("gallery config: images_dir: %w", err)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unsupported format %q", config.Log.Format)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

func validateRegistryConfig(config *RegistryConfig) error {
	if err := validatePath(config.Dir); err != nil {
		return fmt.Errorf("dir: %w", err)
	}

	if config.File == "" || filepath.Base(config.File) != config.File {
		return fmt.Errorf("file must be a bare file name: %q", config.File)
	}

	switch config.Backend {
	case BackendJSON:
	case BackendSQLite:
		if err := validatePath(config.DatabasePath); err != nil {
			return fmt.Errorf("database_path: %w", err)
		}
	default:
		return fmt.Errorf("unsupported backend %q (want %q or %q)", config.Backend, BackendJSON, BackendSQLite)
	}

	return nil
}

func validatePreviewConfig(config *PreviewConfig) error {
	if config.ResolveAttempts < 1 {
		return fmt.Errorf("resolve_attempts must be at least 1, got %d", config.ResolveAttempts)
	}
	if config.ResolveDelay < 0 || config.MountDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if config.RenderTimeout <= 0 {
		return fmt.Errorf("render_timeout must be positive")
	}
	if config.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// validatePath validates a directory or file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
