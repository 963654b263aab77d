package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/cmd/policycmd"
	"github.com/portcullis-auth/portcullis/cmd/userscmd"
	"github.com/portcullis-auth/portcullis/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "portcullis",
	Short: "Authentication and authorization core for the commerce backend",
	Long: `Portcullis issues and verifies session credentials and enforces
attribute-based access policies. It exposes an HTTP API for login, logout,
and policy administration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	rootCmd.AddCommand(policycmd.PolicyCmd)
	rootCmd.AddCommand(userscmd.UsersCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
