package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/store"
)

func init() {
	rootCmd.AddCommand(newWinnerCmd())
}

func newWinnerCmd() *cobra.Command {
	var variantID string

	cmd := &cobra.Command{
		Use:   "winner <name>",
		Short: "Declare a winner for an experiment",
		Long: `Declare a winning variant for an experiment and complete it.

Completed experiments stop assigning visitors; existing assignments are
kept so running visitors keep seeing their variant until rollout.

Example:
  splitkit winner hero --variant big-cta`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return fmt.Errorf("experiment not found: %s", name)
				}

				if exp.Status != store.StatusActive && exp.Status != store.StatusPaused {
					return fmt.Errorf("experiment is not running (current status: %s)", exp.Status)
				}

				v := exp.Variant(variantID)
				if v == nil {
					return fmt.Errorf("unknown variant %q (experiment has %d variants)", variantID, len(exp.Variants))
				}

				if err := s.DeclareWinner(ctx, name, variantID); err != nil {
					return fmt.Errorf("failed to declare winner: %w", err)
				}

				fmt.Printf("Declared winner for experiment '%s': %s (\"%s\")\n", name, v.ID, v.Name)
				fmt.Println("Experiment has been marked as completed.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variantID, "variant", "v", "", "winning variant id (required)")
	cmd.MarkFlagRequired("variant")

	return cmd
}
