// Package policycmd implements the `portcullis policy` command group for
// administering the persisted rule set from the CLI.
package policycmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/cmd/cmdutil"
	"github.com/portcullis-auth/portcullis/internal/config"
)

// PolicyCmd is the parent command for rule administration.
var PolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage access policy rules",
	Long:  `Add, remove, list, and inspect the persisted policy rules used for authorization decisions.`,
}

func newBundle() (*cmdutil.Bundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.NewBundle(cfg)
}

func init() {
	PolicyCmd.AddCommand(addCmd)
	PolicyCmd.AddCommand(removeCmd)
	PolicyCmd.AddCommand(listCmd)
	PolicyCmd.AddCommand(statsCmd)
	PolicyCmd.AddCommand(seedCmd)
}
