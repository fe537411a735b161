package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"task-run-history/internal/config"
	"task-run-history/internal/eventlog"
	"task-run-history/internal/report"
	"task-run-history/internal/resultcode"
)

var (
	configPath string
	output     string
	verbose    bool

	taskNames  []string
	eventsPath string
	maxRuns    int
	strict     bool

	serverURL string
	apiKey    string
	outcome   string
)

func main() {
	root := &cobra.Command{
		Use:           "taskhistory",
		Short:         "Reconstruct scheduled-task run history and decode result codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (correlator and translator sections are used)")
	root.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log diagnostics to stderr")

	// Reconstruct runs from exported event files
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Reconstruct the most recent runs of one or more tasks",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	runsCmd.Flags().StringSliceVarP(&taskNames, "task", "t", nil, `Task path, e.g. \Backup (repeatable)`)
	runsCmd.Flags().StringVarP(&eventsPath, "events", "e", os.Getenv("EVENT_LOG_PATH"), "Event export file or directory")
	runsCmd.Flags().IntVarP(&maxRuns, "max-runs", "n", 0, "Return at most N runs per task (0 = config default)")
	runsCmd.Flags().BoolVar(&strict, "strict", false, "Never attribute uncorrelated events to a run")
	_ = runsCmd.MarkFlagRequired("task")
	root.AddCommand(runsCmd)

	// Translate result codes
	root.AddCommand(&cobra.Command{
		Use:   "translate CODE...",
		Short: "Decode task result codes given as decimal or 0x-hex",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTranslate,
	})

	// Health check
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	}
	addServerFlags(healthCmd)
	root.AddCommand(healthCmd)

	// List archived runs
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived runs from a server",
		RunE:  runArchive,
	}
	addServerFlags(archiveCmd)
	archiveCmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome (success, failure, no_result)")
	archiveCmd.Flags().StringSliceVarP(&taskNames, "task", "t", nil, "Filter by task path")
	root.AddCommand(archiveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("TASKHISTORY_API_KEY"), "API key")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	if eventsPath == "" {
		return fmt.Errorf("--events is required (or set EVENT_LOG_PATH)")
	}
	if maxRuns < 0 {
		return fmt.Errorf("--max-runs must be >= 0")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := cfg.CorrelationOptions()
	opts.Strict = opts.Strict || strict

	svc := report.NewService(eventlog.NewFileSource(eventsPath), newTranslator(cfg), nil, nil, report.Options{
		Correlation:    opts,
		DefaultMaxRuns: cfg.Correlator.DefaultMaxRuns,
		Workers:        cfg.Correlator.Workers,
	})

	reports, err := svc.TaskRunsForTasks(cmd.Context(), taskNames, maxRuns)
	if err != nil {
		return err
	}

	ordered := make([]*report.TaskReport, 0, len(taskNames))
	for _, name := range taskNames {
		ordered = append(ordered, reports[name])
	}

	if output == "json" {
		return printJSON(cmd.OutOrStdout(), ordered)
	}
	return printRunsTable(cmd.OutOrStdout(), ordered)
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tr := newTranslator(cfg)

	translations := make([]resultcode.Translation, 0, len(args))
	for _, a := range args {
		translations = append(translations, tr.TranslateString(a))
	}

	if output == "json" {
		return printJSON(cmd.OutOrStdout(), translations)
	}
	return printTranslationsTable(cmd.OutOrStdout(), args, translations)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	var result map[string]any
	if err := getJSON(cmd.Context(), "/health", &result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runArchive(cmd *cobra.Command, _ []string) error {
	q := url.Values{}
	if outcome != "" {
		q.Set("outcome", outcome)
	}
	if len(taskNames) > 0 {
		q.Set("task", taskNames[0])
	}
	path := "/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result any
	if err := getJSON(cmd.Context(), path, &result); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func newTranslator(cfg *config.Config) *resultcode.Translator {
	if cfg.Translator.Memoize {
		return resultcode.New(resultcode.WithMemo())
	}
	return resultcode.New()
}

func getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+path, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
