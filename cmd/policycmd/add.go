package policycmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/internal/policy"
)

var addEffect string

var addCmd = &cobra.Command{
	Use:   "add [subject] [object] [action] [environment]",
	Short: "Add a policy rule",
	Long:  `Persists one rule. Fields accept literals or the wildcard "*". Adding an existing rule is a no-op.`,
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		if addEffect != policy.EffectAllow && addEffect != policy.EffectDeny {
			return fmt.Errorf("effect must be %q or %q", policy.EffectAllow, policy.EffectDeny)
		}

		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		added, err := bundle.Enforcer.AddPolicy(policy.Rule{
			Subject:     args[0],
			Object:      args[1],
			Action:      args[2],
			Environment: args[3],
			Effect:      addEffect,
		})
		if err != nil {
			return fmt.Errorf("failed to add rule: %w", err)
		}

		if added {
			fmt.Println("Rule added.")
		} else {
			fmt.Println("Rule already exists, nothing to do.")
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addEffect, "effect", policy.EffectAllow, "Rule effect (allow or deny)")
}
