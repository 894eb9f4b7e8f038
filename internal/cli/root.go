package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitkit",
	Short: "splitkit - a self-hosted A/B experiment assignment and analysis engine",
	Long: `splitkit assigns visitors to experiment variants with deterministic
hashing, audience targeting and traffic gating, and analyzes the results
with a two-proportion z-test. Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'splitkit init').`,
	RunE: runInit, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("SK_DB_PATH", "./splitkit.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
