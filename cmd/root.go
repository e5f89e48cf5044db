package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command for the calguard application
var rootCmd = &cobra.Command{
	Use:   "calguard",
	Short: "Calendar MCP server with conflict and duplicate detection",
	Long: `calguard is an MCP (Model Context Protocol) server for Google Calendar.

It exposes calendar tools to AI assistants and guards event creation:
before an event is written, the target calendars are checked for
overlapping events and near-duplicates, and a near-certain duplicate
blocks creation unless explicitly allowed.

Configuration is read from flags, $HOME/.calguard.yaml, and CALGUARD_*
environment variables, in that order of precedence.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calguard version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig wires up the config file and environment variable sources.
// Flag names map to env vars by replacing dashes, so --duplicate-threshold
// becomes CALGUARD_DUPLICATE_THRESHOLD.
func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".calguard")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CALGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else deserves a warning.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
