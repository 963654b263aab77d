package userscmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/internal/accounts"
)

var (
	createRoles       []string
	createDisplayName string
)

var createCmd = &cobra.Command{
	Use:   "create [username]",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		account := &accounts.Account{
			Username:    username,
			DisplayName: createDisplayName,
			Roles:       createRoles,
		}
		if err := bundle.Accounts.Create(context.Background(), account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}

		fmt.Println("Account created successfully!")
		fmt.Printf("ID:       %s\n", account.ID)
		fmt.Printf("Username: %s\n", account.Username)
		fmt.Printf("Roles:    %v\n", account.Roles)
		return nil
	},
}

func init() {
	createCmd.Flags().StringSliceVar(&createRoles, "role", nil, "Role code to grant (repeatable)")
	createCmd.Flags().StringVar(&createDisplayName, "display-name", "", "Human-readable display name")
}
