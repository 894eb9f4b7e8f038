package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants   string
		control    string
		traffic    int
		countries  []string
		devices    []string
		languages  []string
		referrers  []string
		utmSources []string
		startAt    string
		endAt      string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new experiment with the specified name and variants.

Variants are given as id:weight pairs; weights are percentages of the
experiment's traffic and may sum to less than 100 (the remainder sees no
variant). Exactly one variant must be the control.

Examples:
  splitkit create hero --variants "control:50,big-cta:50" --control control
  splitkit create promo --variants "control:40,a:30,b:30" --control control --traffic 20
  splitkit create geo --variants "control:50,local:50" --control control --countries US,CA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			variantList, err := parseVariants(variants, control)
			if err != nil {
				return err
			}

			exp := &store.Experiment{
				Name:              name,
				Status:            store.StatusActive,
				TrafficPercentage: traffic,
				Variants:          variantList,
				Audience: &store.TargetAudience{
					Countries:        countries,
					Devices:          devices,
					Languages:        languages,
					ReferrerContains: referrers,
					UTMSources:       utmSources,
				},
			}

			if startAt != "" {
				t, err := parseWhen(startAt)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				exp.StartAt = &t
			}
			if endAt != "" {
				t, err := parseWhen(endAt)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				exp.EndAt = &t
			}

			return withStore(func(s *store.SQLiteStore) error {
				created, err := s.CreateExperiment(context.Background(), exp)
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				fmt.Printf("Created experiment '%s' (%d%% of traffic) with %d variants:\n",
					created.Name, created.TrafficPercentage, len(created.Variants))
				for _, v := range created.Variants {
					marker := ""
					if v.IsControl {
						marker = " (control)"
					}
					fmt.Printf("  %s: %d%%%s\n", v.ID, v.TrafficPercentage, marker)
				}
				if !created.Audience.Empty() {
					fmt.Println("  Audience targeting is active.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated id:weight pairs (required)")
	cmd.Flags().StringVar(&control, "control", "control", "id of the control variant")
	cmd.Flags().IntVar(&traffic, "traffic", 100, "percentage of all visitors eligible (0-100)")
	cmd.Flags().StringSliceVar(&countries, "countries", nil, "restrict to visitor countries")
	cmd.Flags().StringSliceVar(&devices, "devices", nil, "restrict to device types")
	cmd.Flags().StringSliceVar(&languages, "languages", nil, "restrict to languages")
	cmd.Flags().StringSliceVar(&referrers, "referrer-contains", nil, "restrict to referrers containing any substring")
	cmd.Flags().StringSliceVar(&utmSources, "utm-sources", nil, "restrict to campaign sources")
	cmd.Flags().StringVar(&startAt, "start", "", "start of the experiment window (2006-01-02 or RFC3339)")
	cmd.Flags().StringVar(&endAt, "end", "", "end of the experiment window (2006-01-02 or RFC3339)")
	cmd.MarkFlagRequired("variants")

	return cmd
}

func parseWhen(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
