package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/redmine-ws/internal/client"
	"github.com/fivetwenty-io/redmine-ws/internal/constants"
	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
	"github.com/fivetwenty-io/redmine-ws/pkg/rmclient"
)

// Config represents the CLI configuration persisted in ~/.redmine/config.yml.
type Config struct {
	URL           string  `json:"url,omitempty"            yaml:"url,omitempty"`
	APIKey        string  `json:"api_key,omitempty"        yaml:"api_key,omitempty"`
	Username      string  `json:"username,omitempty"       yaml:"username,omitempty"`
	Password      string  `json:"password,omitempty"       yaml:"password,omitempty"`
	ServerVersion string  `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	KeyPlacement  string  `json:"key_placement,omitempty"  yaml:"key_placement,omitempty"`
	Output        string  `json:"output,omitempty"         yaml:"output,omitempty"`
	DryRun        bool    `json:"dry_run,omitempty"        yaml:"dry_run,omitempty"`
	NATSURL       string  `json:"nats_url,omitempty"       yaml:"nats_url,omitempty"`
	RetryMax      int     `json:"retry_max,omitempty"      yaml:"retry_max,omitempty"`
	RateLimit     float64 `json:"rate_limit,omitempty"     yaml:"rate_limit,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and change the Redmine CLI configuration",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			masked := *config

			if masked.APIKey != "" {
				masked.APIKey = maskedValue
			}

			if masked.Password != "" {
				masked.Password = maskedValue
			}

			format, err := outputFormat()
			if err != nil {
				return err
			}

			switch format {
			case constants.FormatJSON:
				return StandardJSONRenderer(cmd.OutOrStdout(), masked)
			case constants.FormatYAML:
				return StandardYAMLRenderer(cmd.OutOrStdout(), masked)
			default:
				return displayConfigTable(cmd.OutOrStdout(), &masked)
			}
		},
	}
}

const maskedValue = "***"

func displayConfigTable(w io.Writer, config *Config) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")

	_ = table.Append(constants.ConfigKeyURL, config.URL)
	_ = table.Append(constants.ConfigKeyAPIKey, config.APIKey)
	_ = table.Append(constants.ConfigKeyUsername, config.Username)
	_ = table.Append(constants.ConfigKeyPassword, config.Password)
	_ = table.Append(constants.ConfigKeyServerVersion, config.ServerVersion)
	_ = table.Append(constants.ConfigKeyKeyPlacement, config.KeyPlacement)
	_ = table.Append(constants.ConfigKeyOutput, config.Output)
	_ = table.Append(constants.ConfigKeyDryRun, strconv.FormatBool(config.DryRun))
	_ = table.Append(constants.ConfigKeyNATSURL, config.NATSURL)
	_ = table.Append(constants.ConfigKeyRetryMax, strconv.Itoa(config.RetryMax))
	_ = table.Append(constants.ConfigKeyRateLimit, strconv.FormatFloat(config.RateLimit, 'f', -1, 64))

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := setConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := unsetConfigValue(config, args[0])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

// setConfigValue sets one key on config.
func setConfigValue(config *Config, key, value string) error {
	switch key {
	case constants.ConfigKeyURL:
		config.URL = rmclient.NormalizeURL(value)
	case constants.ConfigKeyAPIKey:
		config.APIKey = value
	case constants.ConfigKeyUsername:
		config.Username = value
	case constants.ConfigKeyPassword:
		config.Password = value
	case constants.ConfigKeyServerVersion:
		config.ServerVersion = value
	case constants.ConfigKeyKeyPlacement:
		config.KeyPlacement = value
	case constants.ConfigKeyOutput:
		config.Output = value
	case constants.ConfigKeyNATSURL:
		config.NATSURL = value
	case constants.ConfigKeyDryRun:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}

		config.DryRun = b
	case constants.ConfigKeyRetryMax:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}

		config.RetryMax = n
	case constants.ConfigKeyRateLimit:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}

		config.RateLimit = f
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func unsetConfigValue(config *Config, key string) error {
	zero := &Config{}

	switch key {
	case constants.ConfigKeyURL:
		config.URL = zero.URL
	case constants.ConfigKeyAPIKey:
		config.APIKey = zero.APIKey
	case constants.ConfigKeyUsername:
		config.Username = zero.Username
	case constants.ConfigKeyPassword:
		config.Password = zero.Password
	case constants.ConfigKeyServerVersion:
		config.ServerVersion = zero.ServerVersion
	case constants.ConfigKeyKeyPlacement:
		config.KeyPlacement = zero.KeyPlacement
	case constants.ConfigKeyOutput:
		config.Output = zero.Output
	case constants.ConfigKeyNATSURL:
		config.NATSURL = zero.NATSURL
	case constants.ConfigKeyDryRun:
		config.DryRun = zero.DryRun
	case constants.ConfigKeyRetryMax:
		config.RetryMax = zero.RetryMax
	case constants.ConfigKeyRateLimit:
		config.RateLimit = zero.RateLimit
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

// loadConfig reads the effective configuration from viper: file, then
// REDMINE_* environment, then flags.
func loadConfig() *Config {
	return &Config{
		URL:           viper.GetString(constants.ConfigKeyURL),
		APIKey:        viper.GetString(constants.ConfigKeyAPIKey),
		Username:      viper.GetString(constants.ConfigKeyUsername),
		Password:      viper.GetString(constants.ConfigKeyPassword),
		ServerVersion: viper.GetString(constants.ConfigKeyServerVersion),
		KeyPlacement:  viper.GetString(constants.ConfigKeyKeyPlacement),
		Output:        viper.GetString(constants.ConfigKeyOutput),
		DryRun:        viper.GetBool(constants.ConfigKeyDryRun),
		NATSURL:       viper.GetString(constants.ConfigKeyNATSURL),
		RetryMax:      viper.GetInt(constants.ConfigKeyRetryMax),
		RateLimit:     viper.GetFloat64(constants.ConfigKeyRateLimit),
	}
}

// configFilePath returns the file viper loaded, or ~/.redmine/config.yml.
func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateClient builds a client from the effective configuration.
func CreateClient(ctx context.Context, errOut io.Writer) (redmine.Client, error) {
	config := loadConfig()

	if config.URL == "" {
		return nil, constants.ErrNoURLConfigured
	}

	if config.APIKey == "" && config.Username == "" {
		return nil, constants.ErrNoCredentials
	}

	level := "warn"
	if viper.GetBool(constants.ConfigKeyDebug) {
		level = "debug"
	} else if config.DryRun {
		level = "info"
	}

	return rmclient.New(ctx, &redmine.Config{
		BaseURL:       config.URL,
		APIKey:        config.APIKey,
		Username:      config.Username,
		Password:      config.Password,
		ServerVersion: config.ServerVersion,
		KeyPlacement:  redmine.KeyPlacement(config.KeyPlacement),
		DryRun:        config.DryRun,
		Debug:         viper.GetBool(constants.ConfigKeyDebug),
		Logger:        client.NewDefaultLogger(errOut, level),
		RetryMax:      config.RetryMax,
		RateLimit:     config.RateLimit,
		NATSURL:       config.NATSURL,
	})
}
