// Package userscmd implements the `portcullis users` command group for
// managing accounts from the CLI.
package userscmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/cmd/cmdutil"
	"github.com/portcullis-auth/portcullis/internal/config"
)

// UsersCmd is the parent command for account management.
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
	Long:  `Create and inspect the accounts credentials are issued for.`,
}

func newBundle() (*cmdutil.Bundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.NewBundle(cfg)
}

func init() {
	UsersCmd.AddCommand(createCmd)
	UsersCmd.AddCommand(showCmd)
}
