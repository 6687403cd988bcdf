package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-backend/internal/config"
	"github.com/kuitang/notes-backend/internal/obs"
)

var (
	envFile   string
	addrFlag  string
	storeFlag string
)

// rootCmd serves the API when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Multi-tenant notes backend",
	Long: `Serves an authenticated notes API. Every request carries an identity
token; notes are scoped to the verified subject.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		obs.Init()
		return nil
	},
	RunE: runServe,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address (overrides LISTEN_ADDR / PORT)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "store backend: memory, sqlite, bolt, s3 (overrides STORE_BACKEND)")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(config.Flags{Addr: addrFlag, Store: storeFlag})
}
