package policycmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show rule store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := newBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		stats, err := bundle.Enforcer.Stats()
		if err != nil {
			return fmt.Errorf("failed to compute stats: %w", err)
		}

		fmt.Printf("Total rules:        %d\n", stats.Total)
		fmt.Printf("  allow:            %d\n", stats.Allow)
		fmt.Printf("  deny:             %d\n", stats.Deny)
		fmt.Printf("Wildcard subjects:  %d\n", stats.WildcardSubjects)

		subjects := make([]string, 0, len(stats.BySubject))
		for subject := range stats.BySubject {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)

		fmt.Println("Rules by subject:")
		for _, subject := range subjects {
			fmt.Printf("  %-24s %d\n", subject, stats.BySubject[subject])
		}
		return nil
	},
}
