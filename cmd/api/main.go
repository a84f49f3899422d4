package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const programName = "session-ledger"

var globalFlags = struct {
	configFile string
	envFile    string
}{}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Session ledger and settlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if globalFlags.envFile == "" {
				return nil
			}
			if err := godotenv.Load(globalFlags.envFile); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().
		StringVar(&globalFlags.configFile, "config", "", "path to yaml config file")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.envFile, "env-file", "", "path to .env file loaded before the config")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
