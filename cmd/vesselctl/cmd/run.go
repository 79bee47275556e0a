package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vesselworks/vesselctl/pkg/auth"
	"github.com/vesselworks/vesselctl/pkg/incubate"
	"github.com/vesselworks/vesselctl/pkg/logging"
	"github.com/vesselworks/vesselctl/pkg/metrics"
	"github.com/vesselworks/vesselctl/pkg/pipeline"
)

var (
	runWait           bool
	runContinueOnFail bool
	runPollInterval   time.Duration
	runPollTimeout    time.Duration
	runBudgetUSD      float64
	runBudgetHours    float64
	runMetricsPort    int
	runLogLevel       string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <items.jsonl>",
	Short: "Run a batch of agent jobs from a JSON-lines file",
	Long: `Run processes a JSON-lines file where each line describes one job
(message, model, tools, output schema, ...). Items are processed
sequentially; each mints its own token and, with --wait, runs its own
poll loop. With --continue-on-fail, a failing item is reported with its
index and the batch keeps going.

Example:
  vesselctl run items.jsonl --wait --continue-on-fail
  vesselctl run items.jsonl --wait --metrics-port 9091`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runWait, "wait", true, "wait for each job to reach a terminal state")
	runCmd.Flags().BoolVar(&runContinueOnFail, "continue-on-fail", false, "report per-item failures instead of aborting the batch")
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", incubate.DefaultPollInterval, "status check interval")
	runCmd.Flags().DurationVar(&runPollTimeout, "timeout", incubate.DefaultPollTimeout, "maximum wait per job")
	runCmd.Flags().Float64Var(&runBudgetUSD, "budget-usd", 0, "AI-dollar cap per token (default 10)")
	runCmd.Flags().Float64Var(&runBudgetHours, "budget-hours", 0, "compute-hour cap per token (default 1)")
	runCmd.Flags().IntVar(&runMetricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0=disabled)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// batchItem is one JSON line of the input file
type batchItem struct {
	Message         string `json:"message"`
	Model           string `json:"model,omitempty"`
	CustomModel     string `json:"customModel,omitempty"`
	SystemPrompt    string `json:"systemPrompt,omitempty"`
	MaxTurns        int    `json:"maxTurns,omitempty"`
	OutputFormat    any    `json:"outputFormat,omitempty"`
	Tools           string `json:"tools,omitempty"`
	AllowedTools    string `json:"allowedTools,omitempty"`
	DisallowedTools string `json:"disallowedTools,omitempty"`
	PermissionMode  string `json:"permissionMode,omitempty"`
	TTL             int    `json:"ttl,omitempty"`
	CallbackURL     string `json:"callbackUrl,omitempty"`
	CallbackSecret  string `json:"callbackSecret,omitempty"`
	IdempotencyKey  string `json:"idempotencyKey,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	if GetProjectID() == "" {
		return fmt.Errorf("project id is required (set --project or VESSEL_PROJECT_ID)")
	}

	items, err := readItems(args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items found in %s", args[0])
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}
	incubator, err := NewIncubateClient()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.ParseLevel(runLogLevel), IsJSONOutput())
	collector := metrics.NewCollector()

	if runMetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", runMetricsPort)
			logger.Info("metrics listener started", map[string]any{"addr": addr})
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", map[string]any{"error": err.Error()})
			}
		}()
	}

	runner := &pipeline.Runner{
		Portal:    portalClient,
		Incubator: incubator,
		Config: pipeline.Config{
			UserID:            GetUserID(),
			ProjectID:         GetProjectID(),
			Budget:            auth.Budget{AIDollars: runBudgetUSD, ComputeHours: runBudgetHours},
			WaitForCompletion: runWait,
			PollInterval:      runPollInterval,
			PollTimeout:       runPollTimeout,
			ContinueOnFail:    runContinueOnFail,
		},
		Logger:  logger,
		Metrics: collector,
	}

	// SIGINT/SIGTERM cancels in-flight polling; remote jobs keep running
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		logger.Warn("received signal, stopping", map[string]any{"signal": sig.String()})
		cancel()
	}()

	results, err := runner.Run(ctx, items)
	if displayErr := displayResults(results); displayErr != nil {
		return displayErr
	}
	return err
}

func readItems(path string) ([]incubate.RawOptions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file: %w", err)
	}
	defer f.Close()

	var items []incubate.RawOptions
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var item batchItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", line, err)
		}

		items = append(items, incubate.RawOptions{
			Message:         item.Message,
			Model:           item.Model,
			CustomModel:     item.CustomModel,
			SystemPrompt:    item.SystemPrompt,
			MaxTurns:        item.MaxTurns,
			OutputFormat:    item.OutputFormat,
			Tools:           item.Tools,
			AllowedTools:    item.AllowedTools,
			DisallowedTools: item.DisallowedTools,
			PermissionMode:  item.PermissionMode,
			TTL:             item.TTL,
			CallbackURL:     item.CallbackURL,
			CallbackSecret:  item.CallbackSecret,
			IdempotencyKey:  item.IdempotencyKey,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	return items, nil
}

func displayResults(results []pipeline.ItemResult) error {
	if len(results) == 0 {
		return nil
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Item", "Job ID", "Status", "Subtype", "Error")

	failed := 0
	for _, r := range results {
		jobID, status, subtype, errDisplay := "-", "-", "-", "-"
		if r.Submission != nil {
			jobID = r.Submission.VesselID
			status = string(r.Submission.Status)
		}
		if r.Result != nil {
			status = string(r.Result.Status)
			if r.Result.ResultSubtype != "" {
				subtype = r.Result.ResultSubtype
			}
		}
		if r.Err != nil {
			errDisplay = r.Err.Error()
			failed++
		}
		table.Append(fmt.Sprintf("%d", r.Index), jobID, status, subtype, errDisplay)
	}

	table.Render()
	fmt.Printf("\nProcessed %d items, %d failed\n", len(results), failed)
	return nil
}
