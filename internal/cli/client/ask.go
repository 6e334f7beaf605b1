package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/domenicocinque/web-rag/internal/service"
)

type AnswerRequest struct {
	Query string `json:"query"`
}

type ReplyResponse struct {
	Reply string `json:"reply"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long:  "Asks the server to answer a question from live web results and prints the answer with its sources.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)
			return runAsk(cmd, api, strings.Join(args, " "), outputJSON)
		},
	}
}

func runAsk(cmd *cobra.Command, api *APIClient, question string, outputJSON bool) error {
	resp, err := api.Post(cmd.Context(), "/answer", AnswerRequest{Query: question})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var report service.RunReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		return fmt.Errorf("failed to parse run report: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	printAnswer(out, &report)
	return nil
}

func printAnswer(out io.Writer, report *service.RunReport) {
	fmt.Fprintln(out, report.Answer)
	if len(report.Sources) == 0 {
		return
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
	for i, src := range report.Sources {
		fmt.Fprintf(out, "%d. %s (%.2f)\n", i+1, src.URL, src.Score)
	}
}

// SearchCmd creates the search command, which only prints the reply.
func SearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <question>",
		Short: "Print only the answer to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := NewAPIClientWithCmd(cmd)
			return runSearch(cmd, api, strings.Join(args, " "))
		},
	}
}

func runSearch(cmd *cobra.Command, api *APIClient, question string) error {
	body, err := api.Get(cmd.Context(), "/search", url.Values{"query": {question}})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var reply ReplyResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("failed to parse reply: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply.Reply)
	return nil
}
