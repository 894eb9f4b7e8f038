package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Long:  `List all experiments with their status and traffic totals.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		experiments, err := s.ListExperiments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		if len(experiments) == 0 {
			fmt.Println("No experiments yet.")
			fmt.Println()
			fmt.Println("Create one with:")
			fmt.Println("  splitkit create hero --variants \"control:50,treatment:50\"")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Name", "Status", "Traffic", "Variants", "Visitors", "Conversions", "Created"})

		for _, exp := range experiments {
			counts, err := s.GetVariantCounts(ctx, exp.Name)
			if err != nil {
				return fmt.Errorf("failed to get counts for experiment %s: %w", exp.Name, err)
			}

			totalVisitors := 0
			totalConversions := 0
			for _, c := range counts {
				totalVisitors += c.Visitors
				totalConversions += c.Conversions
			}

			table.Append([]string{
				exp.Name,
				strings.ToUpper(string(exp.Status)),
				fmt.Sprintf("%d%%", exp.TrafficPercentage),
				fmt.Sprintf("%d", len(exp.Variants)),
				formatNumber(totalVisitors),
				formatNumber(totalConversions),
				exp.CreatedAt.Format("2006-01-02"),
			})
		}

		table.Render()
		return nil
	})
}
