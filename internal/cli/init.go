package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/server"
	"github.com/splitkit/splitkit/internal/store"
)

var initPort int

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start the splitkit server",
	Long: `Start the splitkit server, offering to create a starter experiment
when the catalog is empty.

Example:
  splitkit init
  splitkit init --port 8080`,
	RunE: runInit,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("SK_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	initCmd.Flags().IntVarP(&initPort, "port", "p", defaultPort, "port to listen on")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Open database
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	ctx := context.Background()

	experiments, err := s.ListExperiments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list experiments: %w", err)
	}

	if len(experiments) == 0 {
		if err := promptStarterExperiment(ctx, s); err != nil {
			return err
		}
	}

	// Create server
	srv := server.New(s, initPort, getTokenFilePath())

	// Print startup message with instructions
	printStartupInstructions(initPort, srv.Token())

	// Start server quietly (we printed our own message)
	return srv.StartQuiet()
}

// promptStarterExperiment walks through creating a first experiment. A
// declined prompt is fine; the server starts with an empty catalog.
func promptStarterExperiment(ctx context.Context, s *store.SQLiteStore) error {
	confirm := promptui.Select{
		Label: "No experiments yet. Create one now",
		Items: []string{"Yes, walk me through it", "No, start with an empty catalog"},
	}
	idx, _, err := confirm.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return err
	}
	if idx != 0 {
		return nil
	}

	namePrompt := promptui.Prompt{
		Label:   "Experiment name",
		Default: "hero",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("name is required")
			}
			return nil
		},
	}
	name, err := namePrompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return err
	}

	splitPrompt := promptui.Select{
		Label: "Traffic split",
		Items: []string{"50 / 50", "90 / 10", "80 / 20"},
	}
	splitIdx, _, err := splitPrompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return err
	}

	controlWeight := []int{50, 90, 80}[splitIdx]
	exp := &store.Experiment{
		Name:              strings.TrimSpace(name),
		Status:            store.StatusActive,
		TrafficPercentage: 100,
		Variants: []store.Variant{
			{ID: "control", Name: "Control", IsControl: true, TrafficPercentage: controlWeight},
			{ID: "treatment", Name: "Treatment", TrafficPercentage: 100 - controlWeight},
		},
	}

	if _, err := s.CreateExperiment(ctx, exp); err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	fmt.Printf("Created experiment '%s' (control %d%%, treatment %d%%).\n",
		exp.Name, controlWeight, 100-controlWeight)
	return nil
}

func printStartupInstructions(port int, token string) {
	fmt.Println()
	fmt.Printf("Server running at http://localhost:%d\n", port)
	fmt.Printf("Reporting API: http://localhost:%d/api/experiments?token=%s\n", port, token)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()
	fmt.Println("1. Evaluate a visitor")
	fmt.Println()
	fmt.Printf(`   curl -X POST http://localhost:%d/evaluate \
     -d '{"visitor_id":"v1","context":{"country":"US","device":"mobile"}}'`+"\n", port)
	fmt.Println()
	fmt.Println("2. Report a conversion")
	fmt.Println()
	fmt.Printf(`   curl -X POST http://localhost:%d/b \
     -d '{"exp":"hero","v":"treatment","e":"conversion","vid":"v1"}'`+"\n", port)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  results <name>   Show experiment statistics")
	fmt.Println("  winner <name>    Declare a winner")
	fmt.Println("  simulate <name>  Dry-run a traffic split")
	fmt.Println("  list             List all experiments")
	fmt.Println("  token            Show reporting URL")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
}
