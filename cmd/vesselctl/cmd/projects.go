package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// projectsCmd represents the projects command
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long:  `Commands for listing projects and retrieving their signing secrets.`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long:  `List the projects visible to the configured API key.`,
	RunE:  runProjectsList,
}

var projectsHMACKeyCmd = &cobra.Command{
	Use:   "hmac-key <project-id>",
	Short: "Fetch a project's signing secret",
	Long: `Fetch the HMAC signing secret for a project. The secret signs the
budget-scoped tokens embedded in job submissions.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectsHMACKey,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsHMACKeyCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}

	projects, err := portalClient.ListProjects(ctx)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(projects, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Project ID", "Name", "Created")

	for _, p := range projects {
		table.Append(p.ID, p.Name, p.CreatedAt.Format(time.RFC3339))
	}

	table.Render()
	fmt.Printf("\nTotal projects: %d\n", len(projects))
	return nil
}

func runProjectsHMACKey(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	portalClient, err := NewPortalClient()
	if err != nil {
		return err
	}

	key, err := portalClient.GetHMACKey(ctx, args[0])
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, _ := json.Marshal(map[string]string{"projectId": args[0], "hmacKey": key})
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(key)
	return nil
}
