package userscmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "Show an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		account, err := bundle.Accounts.GetByUsername(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to look up account: %w", err)
		}

		fmt.Printf("ID:             %s\n", account.ID)
		fmt.Printf("Username:       %s\n", account.Username)
		if account.DisplayName != "" {
			fmt.Printf("Display name:   %s\n", account.DisplayName)
		}
		fmt.Printf("Roles:          %v\n", account.Roles)
		if account.SessionHandle != "" {
			fmt.Printf("Session handle: %s\n", account.SessionHandle)
		}
		fmt.Printf("Created:        %s\n", account.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
