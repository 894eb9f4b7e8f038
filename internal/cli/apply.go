package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/splitkit/splitkit/internal/store"
)

// experimentSpec is the declarative YAML form of an experiment. Audiences
// and variant payloads get unwieldy as flags; a file keeps them reviewable.
type experimentSpec struct {
	Name              string                `yaml:"name"`
	Status            string                `yaml:"status,omitempty"`
	TrafficPercentage *int                  `yaml:"traffic_percentage,omitempty"`
	Start             string                `yaml:"start,omitempty"`
	End               string                `yaml:"end,omitempty"`
	Audience          *store.TargetAudience `yaml:"audience,omitempty"`
	Variants          []store.Variant       `yaml:"variants"`
}

type applyFile struct {
	Experiments []experimentSpec `yaml:"experiments"`
}

func init() {
	rootCmd.AddCommand(newApplyCmd())
}

func newApplyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create experiments from a YAML file",
		Long: `Create experiments from a declarative YAML file.

Example file:

  experiments:
    - name: hero
      traffic_percentage: 50
      audience:
        countries: [US, CA]
        referrer_contains: [google.]
      variants:
        - id: control
          name: Control
          is_control: true
          traffic_percentage: 50
        - id: big-cta
          name: Big CTA
          traffic_percentage: 50
          payload:
            cta_size: large

Usage:
  splitkit apply -f experiments.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			var parsed applyFile
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return fmt.Errorf("failed to parse yaml: %w", err)
			}
			if len(parsed.Experiments) == 0 {
				return fmt.Errorf("no experiments in %s", file)
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				for _, spec := range parsed.Experiments {
					exp, err := spec.toExperiment()
					if err != nil {
						return fmt.Errorf("experiment %q: %w", spec.Name, err)
					}
					created, err := s.CreateExperiment(ctx, exp)
					if err != nil {
						return fmt.Errorf("experiment %q: %w", spec.Name, err)
					}
					fmt.Printf("Created experiment '%s' with %d variants\n", created.Name, len(created.Variants))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "yaml file with experiment definitions (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func (spec experimentSpec) toExperiment() (*store.Experiment, error) {
	exp := &store.Experiment{
		Name:              spec.Name,
		Status:            store.StatusActive,
		TrafficPercentage: 100,
		Audience:          spec.Audience,
		Variants:          spec.Variants,
	}
	if spec.Status != "" {
		exp.Status = store.ExperimentStatus(spec.Status)
	}
	if spec.TrafficPercentage != nil {
		exp.TrafficPercentage = *spec.TrafficPercentage
	}
	if spec.Start != "" {
		t, err := parseWhen(spec.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		exp.StartAt = &t
	}
	if spec.End != "" {
		t, err := parseWhen(spec.End)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		exp.EndAt = &t
	}
	return exp, nil
}
