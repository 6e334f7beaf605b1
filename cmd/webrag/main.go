package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domenicocinque/web-rag/internal/cli"
	"github.com/domenicocinque/web-rag/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "webrag",
		Short: "web-rag CLI - answers questions from live web results",
		Long: `web-rag CLI sends questions to a running webragd server.

Environment variables:
  WEBRAG_API_URL   API base URL (default: http://localhost:8080/api/v1)`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
