package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mwhitby/debrief/internal/config"
	"github.com/mwhitby/debrief/internal/enrich"
	"github.com/mwhitby/debrief/internal/extract"
	"github.com/mwhitby/debrief/internal/ledger"
	"github.com/mwhitby/debrief/internal/output"
	"github.com/mwhitby/debrief/internal/pipeline"
	"github.com/mwhitby/debrief/internal/provider"
	"github.com/mwhitby/debrief/internal/source"
)

// --- process ---

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch recent meetings and run the extraction pipeline",
	Long: `Fetch meetings from the notes source and run each through the
extraction pipeline. By default only the most recent meeting is processed;
pass --all to process a batch of recent meetings. Meetings already processed
with identical content are skipped; use --force to reprocess them.

Examples:
  debrief process
  debrief process --all --limit 5 --provider ollama --model llama3.1
  debrief process --meeting 8a4f2c --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")
		meetingID, _ := cmd.Flags().GetString("meeting")
		force, _ := cmd.Flags().GetBool("force")
		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		outputDir, _ := cmd.Flags().GetString("output-dir")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		if providerName != "" {
			cfg.Provider.Name = providerName
		}
		if model != "" {
			cfg.Provider.Model = model
		}
		if outputDir != "" {
			cfg.Output.Dir = outputDir
		}

		if !all && meetingID == "" {
			limit = 1
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runProcess(ctx, cfg, limit, meetingID, force)
	},
}

func init() {
	processCmd.Flags().Bool("all", false, "process a batch of recent meetings instead of only the latest")
	processCmd.Flags().Int("limit", 10, "maximum number of recent meetings to fetch with --all")
	processCmd.Flags().String("meeting", "", "process a single meeting by ID")
	processCmd.Flags().Bool("force", false, "reprocess meetings even if already in the ledger")
	processCmd.Flags().String("provider", "", "override the configured provider (anthropic, openai, ollama)")
	processCmd.Flags().String("model", "", "override the configured model")
	processCmd.Flags().String("output-dir", "", "override the configured output directory")
}

func runProcess(ctx context.Context, cfg config.Config, limit int, meetingID string, force bool) error {
	prov, err := provider.Select(cfg.Provider.Name, cfg.Provider.AnthropicAPIKey, cfg.Provider.OpenAIAPIKey, cfg.Provider.OllamaBaseURL)
	if err != nil {
		return err
	}
	gateway := provider.NewGateway(prov, cfg.Provider.MaxAttempts, cfg.Provider.MaxConcurrency)

	store, err := ledger.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	src, err := source.NewClient(cfg.Source.BaseURL, cfg.Source.CredentialsPath)
	if err != nil {
		return fmt.Errorf("connecting to notes source: %w", err)
	}

	meetings, err := fetchMeetings(ctx, src, limit, meetingID)
	if err != nil {
		return err
	}
	if len(meetings) == 0 {
		printWarning("No meetings found.")
		return nil
	}
	printStep("Processing %d meeting(s) with %s...", len(meetings), prov.Name())

	writer, err := output.NewWriter(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("preparing output directory: %w", err)
	}
	writer.Register(meetings)

	runner := pipeline.NewRunner(
		gateway,
		store,
		extract.NewParser(cfg.Extraction.TicketTypeList()),
		enrich.Rules{
			Handles:          cfg.Extraction.HandleMap(),
			PriorityKeywords: cfg.Extraction.PriorityKeywordList(),
			SkipKeywords:     cfg.Extraction.SkipKeywordList(),
		},
		provider.PromptSpec{
			CompanyContext:  cfg.Extraction.CompanyContext,
			RoleDescription: cfg.Extraction.RoleDescription,
			SystemOverride:  cfg.Extraction.SystemOverride,
			TicketTypes:     cfg.Extraction.TicketTypeList(),
		},
		pipeline.Options{
			Model:           cfg.Provider.Model,
			MaxContextChars: cfg.Assembly.MaxContextChars,
			Workers:         cfg.Pipeline.Workers,
			Events:          writer,
		},
	)

	started := time.Now().UTC()
	outcomes, summary, runErr := runner.Run(ctx, meetings, force)

	saveRun(store, started, outcomes, summary)
	reportOutcomes(outcomes, summary)

	return runErr
}

func fetchMeetings(ctx context.Context, src *source.Client, limit int, meetingID string) ([]source.MeetingRecord, error) {
	if meetingID != "" {
		meeting, err := src.FetchFull(ctx, meetingID)
		if err != nil {
			return nil, fmt.Errorf("fetching meeting %s: %w", meetingID, err)
		}
		return []source.MeetingRecord{meeting}, nil
	}

	printStep("Fetching up to %d recent meetings...", limit)
	recent, err := src.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent meetings: %w", err)
	}

	meetings := make([]source.MeetingRecord, 0, len(recent))
	for _, m := range recent {
		full, err := src.FetchFull(ctx, m.ID)
		if err != nil {
			printWarning("Skipping %s: %v", m.ID, err)
			continue
		}
		meetings = append(meetings, full)
	}
	return meetings, nil
}

// saveRun records the batch in the ledger. A recording failure is reported
// but never fails the run; the per-meeting ledger state is already committed.
func saveRun(store *ledger.Store, started time.Time, outcomes []pipeline.Outcome, summary pipeline.Summary) {
	run := ledger.Run{
		ID:         uuid.New().String(),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Completed:  summary.Completed,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
	}
	runMeetings := make([]ledger.RunMeeting, len(outcomes))
	for i, out := range outcomes {
		detail := out.Reason
		if out.Status == pipeline.StatusFailed {
			detail = fmt.Sprintf("%s: %s", out.ErrKind, out.Detail)
		}
		runMeetings[i] = ledger.RunMeeting{
			RunID:     run.ID,
			MeetingID: out.MeetingID,
			Title:     out.Title,
			Status:    string(out.Status),
			Detail:    detail,
		}
	}
	if err := store.SaveRun(run, runMeetings); err != nil {
		printWarning("Could not record run in ledger: %v", err)
	}
}

func reportOutcomes(outcomes []pipeline.Outcome, summary pipeline.Summary) {
	for _, out := range outcomes {
		title := out.Title
		if title == "" {
			title = out.MeetingID
		}
		switch out.Status {
		case pipeline.StatusCompleted:
			printSuccess("%s", title)
		case pipeline.StatusSkipped:
			printStep("%s (skipped: %s)", title, out.Reason)
		case pipeline.StatusFailed:
			printError("%s (%s: %s)", title, out.ErrKind, out.Detail)
		}
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", summary)
}

// --- ledger ---

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the processed-meetings ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed meetings",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := ledger.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer store.Close()

		records, err := store.ListProcessed(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No processed meetings.")
			return nil
		}

		for _, rec := range records {
			id := rec.MeetingID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, id),
				rec.ProcessedAt.Format("2006-01-02 15:04"),
				rec.Title,
			)
		}
		return nil
	},
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <meeting-id>",
	Short: "Show a processed meeting's ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := ledger.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer store.Close()

		record, err := store.GetProcessed(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

var ledgerRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := ledger.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, run := range runs {
			id := run.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Printf("%s  %s  completed: %d, skipped: %d, failed: %d\n",
				colorize(colorCyan, id),
				run.StartedAt.Format("2006-01-02 15:04"),
				run.Completed, run.Skipped, run.Failed,
			)
		}
		return nil
	},
}

func init() {
	ledgerListCmd.Flags().Int("limit", 20, "maximum number of meetings to list")
	ledgerRunsCmd.Flags().Int("limit", 10, "maximum number of runs to list")
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerRunsCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show debrief system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		printStatus("Provider", "%s", cfg.Provider.Name)
		model := cfg.Provider.Model
		if model == "" {
			model = "(provider default)"
		}
		printStatus("Model", "%s", model)
		printStatus("Source", "%s", cfg.Source.BaseURL)
		printStatus("Output dir", "%s", cfg.Output.Dir)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)

		store, err := ledger.Open(cfg.Storage.DataDir)
		if err != nil {
			printStatus("Ledger", "unavailable (%v)", err)
			return nil
		}
		defer store.Close()

		count, err := store.CountProcessed()
		if err != nil {
			printStatus("Ledger", "error (%v)", err)
			return nil
		}
		printStatus("Processed meetings", "%d", count)
		return nil
	},
}
