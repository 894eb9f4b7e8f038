package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/store"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show reporting API URL with access token",
	Long: `Show the reporting API URL with your access token.

Use this when you've scrolled past the startup message or need to
share the reporting link.

Example:
  splitkit token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	tokenFile := getTokenFilePath()

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: splitkit")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := string(data)
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: splitkit")
	}

	// Try to get the server URL from settings
	serverURL := "http://localhost:8080"
	s, err := store.Open(dbPath)
	if err == nil {
		defer s.Close()
		if url, err := s.GetSetting(context.Background(), "server_url"); err == nil && url != "" {
			serverURL = url
		}
	}

	fmt.Printf("Reporting API: %s/api/experiments?token=%s\n", serverURL, token)
	fmt.Println()
	fmt.Println("Tip: Bookmark this URL or run 'splitkit token' anytime.")
	return nil
}
