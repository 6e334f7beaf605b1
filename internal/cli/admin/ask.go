package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/domenicocinque/web-rag/internal/app"
	"github.com/domenicocinque/web-rag/internal/config"
	"github.com/domenicocinque/web-rag/internal/logger"
	"github.com/domenicocinque/web-rag/internal/service"
)

// AskCmd runs one pipeline in-process and prints the answer.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from live web results",
		Long: `Runs the full pipeline in-process: rewrite, search, fetch, index and answer.
Flags override the matching WEBRAG_* settings for this run only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringP("output", "o", outputText, "Output format (text or json)")
	cmd.Flags().Int("search-top-k", 0, "Number of search results to fetch")
	cmd.Flags().String("search-lang", "", "Search language")
	cmd.Flags().String("split-by", "", "Split unit: word, sentence or passage")
	cmd.Flags().Int("split-length", 0, "Units per chunk")
	cmd.Flags().Int("split-overlap", 0, "Units shared by consecutive chunks")
	cmd.Flags().Int("retrieval-top-k", 0, "Chunks passed to the answer prompt")
	cmd.Flags().String("no-context-policy", "", "Behavior when nothing is retrieved: generate or fallback")

	return cmd
}

const (
	outputText = "text"
	outputJSON = "json"
)

func runAsk(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat != outputText && outputFormat != outputJSON {
		return fmt.Errorf("unknown output format %q: want text or json", outputFormat)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyFlagOverrides(cfg, cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	shutdownTelemetry := initTelemetry(cfg, log)
	defer shutdownTelemetry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, log)

	rt, err := app.Build(ctx, cfg, log, app.Options{Migrate: true, Archive: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.Pipeline.Run(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	return printReport(cmd.OutOrStdout(), report, outputFormat)
}

// applyFlagOverrides copies every flag the user set onto cfg.
func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) error {
	var errs []string

	flags.Visit(func(f *pflag.Flag) {
		value := f.Value.String()
		var err error
		switch f.Name {
		case "search-top-k":
			cfg.SearchTopK, err = strconv.Atoi(value)
		case "search-lang":
			cfg.SearchLang = value
		case "split-by":
			cfg.SplitBy = value
		case "split-length":
			cfg.SplitLength, err = strconv.Atoi(value)
		case "split-overlap":
			cfg.SplitOverlap, err = strconv.Atoi(value)
		case "retrieval-top-k":
			cfg.RetrievalTopK, err = strconv.Atoi(value)
		case "no-context-policy":
			cfg.NoContextPolicy = value
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("--%s: %v", f.Name, err))
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("invalid flags: %s", strings.Join(errs, "; "))
	}
	return nil
}

func printReport(w io.Writer, report *service.RunReport, outputFormat string) error {
	if outputFormat == outputJSON {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	}

	fmt.Fprintln(w, report.Answer)
	if len(report.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for i, src := range report.Sources {
			fmt.Fprintf(w, "%d. %s (chunk %d, %.2f)\n", i+1, src.URL, src.ChunkIndex, src.Score)
		}
	}
	return nil
}
