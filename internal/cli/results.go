package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/stats"
	"github.com/splitkit/splitkit/internal/store"
)

var resultsDays int

var resultsCmd = &cobra.Command{
	Use:   "results <name>",
	Short: "Show detailed results for an experiment",
	Long: `Show detailed results including conversion rates, confidence
intervals, uplift against control and statistical significance.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().IntVar(&resultsDays, "days", 0, "also print a daily timeline covering the last N days")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		exp, err := s.GetExperiment(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("experiment '%s' not found", name)
			}
			return fmt.Errorf("failed to get experiment: %w", err)
		}

		counts, err := s.GetVariantCounts(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get counts: %w", err)
		}

		result := stats.Compute(counts)

		fmt.Printf("EXPERIMENT: %s\n", exp.Name)
		fmt.Printf("STATUS: %s\n", exp.Status)
		fmt.Printf("TRAFFIC: %d%%\n", exp.TrafficPercentage)
		fmt.Printf("CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		if result == nil {
			fmt.Println("No control variant configured; nothing to report.")
			return nil
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Variant", "Visitors", "Conversions", "Rate", "95% CI", "Uplift", "p-value"})

		for _, v := range result.Variants {
			label := v.VariantID
			if v.IsControl {
				label += " (control)"
			}

			ci := fmt.Sprintf("[%.1f%%, %.1f%%]", v.CILower, v.CIUpper)
			if v.Visitors == 0 {
				ci = "N/A"
			}

			uplift := "-"
			pValue := "-"
			if !v.IsControl {
				uplift = fmt.Sprintf("%+.1f%%", v.Uplift)
				pValue = fmt.Sprintf("%.4f", v.PValue)
			}

			table.Append([]string{
				label,
				formatNumber(v.Visitors),
				formatNumber(v.Conversions),
				fmt.Sprintf("%.2f%%", v.ConversionRate),
				ci,
				uplift,
				pValue,
			})
		}
		table.Render()
		fmt.Println()

		if result.Winner != nil {
			fmt.Printf("Winner: %s (%.1f%% confidence, %+.1f%% over control)\n",
				*result.Winner, result.Confidence, result.Improvement)
		} else {
			fmt.Println("No statistically significant winner yet.")
		}
		if result.DurationDays > 0 {
			fmt.Printf("Data covers %d day(s), %s visitors total.\n",
				result.DurationDays, formatNumber(result.TotalVisitors))
		}

		if resultsDays > 0 {
			fmt.Println()
			printTimeline(cmd, counts, resultsDays)
		}
		return nil
	})
}

func printTimeline(cmd *cobra.Command, counts []store.VariantCounts, days int) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Date", "Visitors", "Conversions"})
	for _, e := range stats.Timeline(counts, days) {
		table.Append([]string{e.Date, formatNumber(e.Visitors), formatNumber(e.Conversions)})
	}
	table.Render()
}
