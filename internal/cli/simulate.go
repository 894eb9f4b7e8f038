package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/store"
)

func init() {
	rootCmd.AddCommand(newSimulateCmd())
}

// simulate drives the assignment engine in-process with synthetic
// visitors. Useful for sanity-checking a split before going live: the
// distribution should track the configured weights and the unallocated
// remainder.
func newSimulateCmd() *cobra.Command {
	var (
		visitors int
		country  string
		device   string
		language string
	)

	cmd := &cobra.Command{
		Use:   "simulate <name>",
		Short: "Dry-run an experiment's traffic split",
		Long: `Evaluate the experiment against synthetic visitors and print how
they distribute over variants. Nothing is persisted.

Example:
  splitkit simulate hero --visitors 10000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				exp, err := s.GetExperiment(context.Background(), name)
				if err != nil {
					return fmt.Errorf("experiment not found: %s", name)
				}

				vc := engine.VisitorContext{Country: country, Device: device, Language: language}
				candidates := []*store.Experiment{exp}

				tally := make(map[string]int)
				unassigned := 0
				for i := 0; i < visitors; i++ {
					a := engine.Evaluate(uuid.NewString(), vc, candidates, nil)
					if a == nil {
						unassigned++
						continue
					}
					tally[a.VariantID]++
				}

				fmt.Printf("Simulated %s visitors against '%s' (%d%% traffic):\n\n",
					formatNumber(visitors), exp.Name, exp.TrafficPercentage)

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"Variant", "Weight", "Visitors", "Share"})
				for _, v := range exp.Variants {
					table.Append([]string{
						v.ID,
						fmt.Sprintf("%d%%", v.TrafficPercentage),
						formatNumber(tally[v.ID]),
						fmt.Sprintf("%.1f%%", share(tally[v.ID], visitors)),
					})
				}
				table.Append([]string{"(none)", "-", formatNumber(unassigned),
					fmt.Sprintf("%.1f%%", share(unassigned, visitors))})
				table.Render()
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&visitors, "visitors", 10000, "number of synthetic visitors")
	cmd.Flags().StringVar(&country, "country", "", "visitor country for targeting")
	cmd.Flags().StringVar(&device, "device", "", "visitor device for targeting")
	cmd.Flags().StringVar(&language, "language", "", "visitor language for targeting")

	return cmd
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
