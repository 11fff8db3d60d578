package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/designforge/mimicry/internal/config"
	mimerrors "github.com/designforge/mimicry/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect mimicry configuration",
	Long: `Inspect mimicry configuration files and settings.

Examples:
  mimicry config show                         # Show the effective configuration
  mimicry config show --format json           # Show it as JSON
  mimicry config validate                     # Validate .mimicry.yml
  mimicry config validate --file prod.yml     # Validate a specific file`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a mimicry configuration file: ports, paths, the registry
backend and the preview timings.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after loading the config file, applying
MIMICRY_ environment overrides, defaults and command-line flags.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .mimicry.yml)")
	configShowCmd.Flags().StringVar(&configFormat, "format", FormatYAML, "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return outputResults(cmd.OutOrStdout(), configFormat, cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return errors.New("no configuration file found; use --file to specify one")
		}
		targetFile = defaultConfigPath
	}

	if _, err := os.Stat(targetFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file %s does not exist", targetFile)
	}

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return mimerrors.NewEnhancedError("Failed to read configuration file", err,
			mimerrors.ConfigurationError(err.Error(), targetFile))
	}

	if _, err := config.LoadFrom(v); err != nil {
		return mimerrors.NewEnhancedError("Configuration is invalid", err,
			mimerrors.ConfigurationError(err.Error(), targetFile))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s is valid\n", targetFile)
	return nil
}
