// Package cmd provides the command-line interface for mimicry with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports configuration through several sources with clear precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. MIMICRY_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (MIMICRY_SERVER_PORT, etc.)
//	4. Configuration files (.mimicry.yml) - lowest priority
//
// Environment Variables:
//
//	MIMICRY_CONFIG_FILE: Path to custom configuration file
//	MIMICRY_SERVER_PORT: Override server port
//	MIMICRY_REGISTRY_DIR: Override the generated components directory
//	MIMICRY_REGISTRY_BACKEND: json or sqlite
//	And more following the MIMICRY_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/designforge/mimicry/internal/config"
	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/registry"
)

const defaultConfigPath = ".mimicry.yml"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mimicry",
	Short: "Live preview server for generated React components",
	Long: `Mimicry previews AI-generated React/TSX components in the browser.

It keeps a registry of generated components, turns each source file into a
self-contained preview page, and serves a studio with live reload, a code
view and element selection for follow-up edits.

Quick Start:
  mimicry serve                   Start the preview server
  mimicry list                    List registered components
  mimicry preview <id>            Write a preview document
  mimicry code <id> --highlight   Show a component's source
  mimicry mcp                     Serve the registry tools over stdio

Command Aliases:
  serve (s), list (l), preview (p)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .mimicry.yml, can also use MIMICRY_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. MIMICRY_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .mimicry.yml in current directory
//
// Every key can also be set from the environment with the MIMICRY_ prefix,
// e.g. MIMICRY_SERVER_PORT=8080.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MIMICRY_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mimicry")
	}

	viper.SetEnvPrefix("MIMICRY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing or unreadable file leaves defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configPath is the file named in configuration error suggestions.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultConfigPath
}

// loadConfig reads the effective configuration, wrapping failures with
// suggestions for the user.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		path := configPath()
		return nil, errors.NewEnhancedError(
			"Failed to load configuration",
			err,
			errors.ConfigurationError(err.Error(), path),
		)
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section. Logs always go
// to stderr or a file so stdout stays free for command output.
func newLogger(cfg *config.Config) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, errors.NewConfigError("LOG_LEVEL", err.Error())
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Log.Format

	if cfg.Log.Dir == "" {
		return logging.NewLogger(lc), func() {}, nil
	}

	fl, err := logging.NewFileLogger(lc, cfg.Log.Dir)
	if err != nil {
		return nil, nil, err
	}
	return fl, func() { _ = fl.Close() }, nil
}

// app bundles what most commands need: configuration, a logger and an open
// registry store.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	store    registry.Store
	closeLog func()
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := registry.Open(
		cfg.Registry.Backend,
		cfg.Registry.Dir,
		cfg.Registry.DatabasePath,
		registry.WithRegistryFile(cfg.Registry.File),
		registry.WithLogger(logger),
	)
	if err != nil {
		closeLog()
		return nil, errors.NewEnhancedError(
			fmt.Sprintf("Failed to open %s registry in %s", cfg.Registry.Backend, cfg.Registry.Dir),
			err,
			errors.RegistryOpenError(err, cfg.Registry.Backend, cfg.Registry.Dir),
		)
	}

	return &app{cfg: cfg, logger: logger, store: store, closeLog: closeLog}, nil
}

func (a *app) Close() error {
	err := a.store.Close()
	a.closeLog()
	return err
}
