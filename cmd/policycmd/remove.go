package policycmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portcullis-auth/portcullis/internal/policy"
)

var (
	removeEffect  string
	removeSubject string
	removeRole    string
)

var removeCmd = &cobra.Command{
	Use:   "remove [subject] [object] [action] [environment]",
	Short: "Remove policy rules",
	Long: `Removes one rule by its full tuple, or cascades over every rule
referencing a subject or role when --subject or --role is given.`,
	Args: cobra.MaximumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		var removed bool
		switch {
		case removeSubject != "":
			removed, err = bundle.Enforcer.DeleteUser(removeSubject)
		case removeRole != "":
			removed, err = bundle.Enforcer.DeleteRole(removeRole)
		case len(args) == 4:
			removed, err = bundle.Enforcer.RemovePolicy(policy.Rule{
				Subject:     args[0],
				Object:      args[1],
				Action:      args[2],
				Environment: args[3],
				Effect:      removeEffect,
			})
		default:
			return fmt.Errorf("provide a full rule tuple, or --subject / --role for a cascade")
		}
		if err != nil {
			return fmt.Errorf("failed to remove rules: %w", err)
		}

		if removed {
			fmt.Println("Rules removed.")
		} else {
			fmt.Println("No matching rules, nothing to do.")
		}
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeEffect, "effect", policy.EffectAllow, "Rule effect (allow or deny)")
	removeCmd.Flags().StringVar(&removeSubject, "subject", "", "Remove every rule for this subject")
	removeCmd.Flags().StringVar(&removeRole, "role", "", "Remove every rule for this role")
}
