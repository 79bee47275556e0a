package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vesselworks/vesselctl/pkg/auth"
	"github.com/vesselworks/vesselctl/pkg/incubate"
	"github.com/vesselworks/vesselctl/pkg/models"
)

var (
	// Job submit flags
	message         string
	model           string
	customModel     string
	systemPrompt    string
	maxTurns        int
	toolsFlag       string
	allowedTools    string
	disallowedTools string
	permissionMode  string
	outputSchema    string
	ttlSeconds      int
	callbackURL     string
	callbackSecret  string
	idempotencyKey  string
	budgetUSD       float64
	budgetHours     float64
	waitForJob      bool
	pollInterval    time.Duration
	pollTimeout     time.Duration

	// Job status flags
	followStatus   bool
	followInterval time.Duration

	// Job list flags
	listStatus string
	listLimit  int
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage agent jobs",
	Long:  `Commands for submitting, inspecting, canceling, and listing agent jobs.`,
}

// jobsSubmitCmd represents the jobs submit command
var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new agent job",
	Long: `Submit a new agent job to the execution endpoint. A budget-scoped
token is minted for the configured project and embedded in the request.
With --wait the command polls the portal until the job reaches a
terminal state and prints the flattened result.`,
	RunE: runJobsSubmit,
}

// jobsStatusCmd represents the jobs status command
var jobsStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Get job status",
	Long:  `Retrieve the status of a specific job by its ID. If no ID is provided, lists recent jobs.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobsStatus,
}

// jobsCancelCmd represents the jobs cancel command
var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job",
	Long:  `Ask the portal to cancel a job. A local poll loop only observes the cancellation once the terminal status is stored.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

// jobsListCmd represents the jobs list command
var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Long:  `List jobs recorded by the portal, optionally filtered by status.`,
	RunE:  runJobsList,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsListCmd)

	// Flags for job submit
	jobsSubmitCmd.Flags().StringVarP(&message, "message", "m", "", "message for the agent (required)")
	jobsSubmitCmd.Flags().StringVar(&model, "model", "", "model id (haiku, sonnet, opus, custom)")
	jobsSubmitCmd.Flags().StringVar(&customModel, "custom-model", "", "model string used when --model custom")
	jobsSubmitCmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "system prompt override")
	jobsSubmitCmd.Flags().IntVar(&maxTurns, "max-turns", 0, "maximum agent turns (0=unset)")
	jobsSubmitCmd.Flags().StringVar(&toolsFlag, "tools", "", "tool set: JSON array or comma list")
	jobsSubmitCmd.Flags().StringVar(&allowedTools, "allowed-tools", "", "comma-separated allowed tools")
	jobsSubmitCmd.Flags().StringVar(&disallowedTools, "disallowed-tools", "", "comma-separated disallowed tools")
	jobsSubmitCmd.Flags().StringVar(&permissionMode, "permission-mode", "default", "permission mode (default, acceptEdits, plan, bypassPermissions)")
	jobsSubmitCmd.Flags().StringVar(&outputSchema, "output-schema", "", "JSON schema for structured output")
	jobsSubmitCmd.Flags().IntVar(&ttlSeconds, "ttl", 0, "seconds to delay execution (0=immediate)")
	jobsSubmitCmd.Flags().StringVar(&callbackURL, "callback-url", "", "URL to receive the job result")
	jobsSubmitCmd.Flags().StringVar(&callbackSecret, "callback-secret", "", "HMAC secret for callback signing")
	jobsSubmitCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "idempotency key (generated when empty)")
	jobsSubmitCmd.Flags().Float64Var(&budgetUSD, "budget-usd", 0, "AI-dollar cap embedded in the token (default 10)")
	jobsSubmitCmd.Flags().Float64Var(&budgetHours, "budget-hours", 0, "compute-hour cap embedded in the token (default 1)")
	jobsSubmitCmd.Flags().BoolVar(&waitForJob, "wait", false, "block until the job reaches a terminal state")
	jobsSubmitCmd.Flags().DurationVar(&pollInterval, "poll-interval", incubate.DefaultPollInterval, "status check interval with --wait")
	jobsSubmitCmd.Flags().DurationVar(&pollTimeout, "timeout", incubate.DefaultPollTimeout, "maximum time to wait with --wait")
	jobsSubmitCmd.MarkFlagRequired("message")

	// Flags for job status
	jobsStatusCmd.Flags().BoolVar(&followStatus, "follow", false, "poll job status until completion")
	jobsStatusCmd.Flags().DurationVar(&followInterval, "interval", incubate.DefaultPollInterval, "poll interval with --follow")

	// Flags for job list
	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (PENDING, QUEUED, EXECUTING, COMPLETED, FAILED, CANCELED)")
	jobsListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of jobs to return")
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	if GetProjectID() == "" {
		return fmt.Errorf("project id is required (set --project or VESSEL_PROJECT_ID)")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}
	incubator, err := NewIncubateClient()
	if err != nil {
		return err
	}

	// A fresh, budget-scoped token is minted for every submission
	hmacKey, err := portalClient.GetHMACKey(ctx, GetProjectID())
	if err != nil {
		return err
	}
	token, err := auth.NewTokenProvider(hmacKey).Mint(GetUserID(), GetProjectID(), auth.Budget{
		AIDollars:    budgetUSD,
		ComputeHours: budgetHours,
	})
	if err != nil {
		return err
	}

	req, err := incubate.BuildRequest(incubate.RawOptions{
		Message:         message,
		Model:           model,
		CustomModel:     customModel,
		SystemPrompt:    systemPrompt,
		MaxTurns:        maxTurns,
		OutputFormat:    outputSchema,
		Tools:           toolsFlag,
		AllowedTools:    allowedTools,
		DisallowedTools: disallowedTools,
		PermissionMode:  permissionMode,
		TTL:             ttlSeconds,
		CallbackURL:     callbackURL,
		CallbackSecret:  callbackSecret,
		IdempotencyKey:  idempotencyKey,
		Token:           token,
	})
	if err != nil {
		return err
	}

	sub, err := incubator.Submit(ctx, req)
	if err != nil {
		return err
	}

	if !waitForJob {
		return displaySubmission(sub)
	}

	poller := &incubate.Poller{
		Source:   portalClient,
		Interval: pollInterval,
		Timeout:  pollTimeout,
	}
	job, err := poller.Wait(ctx, sub.VesselID)
	if err != nil {
		return err
	}

	return displayFlatResult(incubate.Flatten(job))
}

func displaySubmission(sub *models.SubmitResponse) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(sub, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", sub.VesselID)
	table.Append("Idempotency Key", sub.IdempotencyKey)
	table.Append("Status", string(sub.Status))
	if sub.ScheduledFor != nil {
		table.Append("Scheduled For", sub.ScheduledFor.Format(time.RFC3339))
	}
	table.Render()

	fmt.Printf("\nJob submitted successfully! ID: %s\n", sub.VesselID)
	return nil
}

func displayFlatResult(flat models.FlatResult) error {
	if IsJSONOutput() {
		output, err := json.MarshalIndent(flat, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", flat.JobID)
	table.Append("Status", string(flat.Status))
	table.Append("Success", fmt.Sprintf("%t", flat.IsSuccess))

	if flat.ResultSubtype != "" {
		table.Append("Result Subtype", flat.ResultSubtype)
	}
	if flat.Text != nil {
		table.Append("Text", *flat.Text)
	} else if flat.ResultText != "" {
		table.Append("Text", flat.ResultText)
	}
	if flat.StructuredOutput != nil {
		table.Append("Structured Output", string(flat.StructuredOutput))
	}
	if flat.TotalCostUSD != nil {
		table.Append("Cost (USD)", fmt.Sprintf("%.4f", *flat.TotalCostUSD))
	}
	if flat.Error != "" {
		table.Append("Error", flat.Error)
	}

	table.Append("Created At", flat.CreatedAt.Format(time.RFC3339))
	if flat.StartedAt != nil {
		table.Append("Started At", flat.StartedAt.Format(time.RFC3339))
	}
	if flat.FinishedAt != nil {
		table.Append("Finished At", flat.FinishedAt.Format(time.RFC3339))
	}

	table.Render()
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	// If no job ID provided, list recent jobs
	if len(args) == 0 {
		return runJobsList(cmd, args)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}

	jobID := args[0]

	if followStatus {
		fmt.Printf("Following job %s (press Ctrl+C to stop)...\n\n", jobID)
		for {
			job, err := portalClient.GetJob(ctx, jobID)
			if err != nil {
				return err
			}

			displayJob(job)

			if job.Terminal() {
				fmt.Println("\n✓ Job reached terminal state")
				return nil
			}

			time.Sleep(followInterval)
		}
	}

	job, err := portalClient.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	displayJob(job)
	return nil
}

func displayJob(job *models.Job) {
	if IsJSONOutput() {
		output, _ := json.MarshalIndent(job, "", "  ")
		fmt.Println(string(output))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Job ID", job.ID)
	table.Append("Status", string(job.Status))
	table.Append("Created At", job.CreatedAt.Format(time.RFC3339))

	if job.StartedAt != nil {
		table.Append("Started At", job.StartedAt.Format(time.RFC3339))
	}
	if job.FinishedAt != nil {
		table.Append("Finished At", job.FinishedAt.Format(time.RFC3339))
	}
	if job.Error != nil {
		table.Append("Error", job.Error.Message)
	}
	if job.Output != nil && job.Output.Result != nil {
		table.Append("Result Subtype", job.Output.Result.Subtype)
		table.Append("Cost (USD)", fmt.Sprintf("%.4f", job.Output.Result.TotalCostUSD))
	}

	table.Render()
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}

	resp, err := portalClient.CancelJob(ctx, args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("✓ Job %s canceled successfully\n", resp.JobID)
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}

	jobs, err := portalClient.ListJobs(ctx, models.JobStatus(listStatus), listLimit)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Status", "Created", "Finished", "Error")

	for _, job := range jobs {
		finished := "-"
		if job.FinishedAt != nil {
			finished = job.FinishedAt.Format("2006-01-02 15:04")
		}
		errDisplay := "-"
		if job.Error != nil {
			errDisplay = job.Error.Message
		}

		table.Append(
			job.ID,
			string(job.Status),
			job.CreatedAt.Format("2006-01-02 15:04"),
			finished,
			errDisplay,
		)
	}

	table.Render()
	fmt.Printf("\nTotal jobs: %d\n", len(jobs))
	return nil
}
