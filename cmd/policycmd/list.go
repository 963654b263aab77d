package policycmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all policy rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		rules, err := bundle.Enforcer.Rules()
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if len(rules) == 0 {
			fmt.Println("No rules in the store.")
			return nil
		}

		fmt.Printf("%-24s %-16s %-10s %-12s %s\n", "SUBJECT", "OBJECT", "ACTION", "ENVIRONMENT", "EFFECT")
		for _, rule := range rules {
			fmt.Printf("%-24s %-16s %-10s %-12s %s\n",
				rule.Subject, rule.Object, rule.Action, rule.Environment, rule.Effect)
		}
		return nil
	},
}
