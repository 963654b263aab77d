package policycmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the built-in bootstrap rules",
	Long: `Seeds the built-in rule set into the store. Seeding only happens when
the store is empty; a non-empty store is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		seeded, err := bundle.Enforcer.Bootstrap()
		if err != nil {
			return fmt.Errorf("failed to seed rules: %w", err)
		}

		if seeded {
			fmt.Println("Bootstrap rules seeded.")
		} else {
			fmt.Println("Store is not empty, nothing seeded.")
		}
		return nil
	},
}
