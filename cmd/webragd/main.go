package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domenicocinque/web-rag/internal/cli"
	"github.com/domenicocinque/web-rag/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webragd",
		Short: "web-rag daemon and CLI",
		Long:  "web-rag daemon for serving the answer API, running one-off questions and managing the chunk store schema",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.AskCmd())
	rootCmd.AddCommand(admin.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
