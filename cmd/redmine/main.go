package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/redmine-ws/cmd/redmine/commands"
	"github.com/fivetwenty-io/redmine-ws/internal/constants"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "redmine",
		Short: "Redmine REST CLI",
		Long: `A command-line interface for the Redmine REST API.

Issues, projects, users, time entries and the rest of the resource catalogue
can be listed, shown, created, updated and deleted. Use --dry-run to see what
would be written without changing anything on the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.redmine/config.yml)")
	flags.String("url", "", "Redmine base URL")
	flags.StringP("api-key", "k", "", "API key")
	flags.StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	flags.Bool("debug", false, "log every request and response")
	flags.BoolP("dry-run", "n", false, "pretend to write; reads still go to the server")

	// Bind flags to viper
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag(constants.ConfigKeyURL, flags.Lookup("url"))
	_ = viper.BindPFlag(constants.ConfigKeyAPIKey, flags.Lookup("api-key"))
	_ = viper.BindPFlag(constants.ConfigKeyOutput, flags.Lookup("output"))
	_ = viper.BindPFlag(constants.ConfigKeyDebug, flags.Lookup("debug"))
	_ = viper.BindPFlag(constants.ConfigKeyDryRun, flags.Lookup("dry-run"))

	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewResourcesCommand())
	rootCmd.AddCommand(commands.NewIssuesCommand())
	rootCmd.AddCommand(commands.NewProjectsCommand())
	rootCmd.AddCommand(commands.NewUsersCommand())
	rootCmd.AddCommand(commands.NewTimeEntriesCommand())
	rootCmd.AddCommand(commands.NewVersionsCommand())
	rootCmd.AddCommand(commands.NewMembershipsCommand())
	rootCmd.AddCommand(commands.NewNewsCommand())

	return rootCmd
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in ~/.redmine/config.yml
		viper.AddConfigPath(filepath.Join(home, constants.ConfigDirName))
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil && viper.GetBool(constants.ConfigKeyDebug) {
		_, _ = fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	cobra.OnInitialize(initConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
