package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configFormat string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for inspecting the effective vesselctl configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging flags, environment variables,
and the config file. The API key is masked.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format: yaml or json")
}

type effectiveConfig struct {
	PortalURL   string `json:"portal_url" yaml:"portal_url"`
	IncubateURL string `json:"incubate_url" yaml:"incubate_url"`
	ProjectID   string `json:"project_id" yaml:"project_id"`
	UserID      string `json:"user_id" yaml:"user_id"`
	APIKey      string `json:"api_key" yaml:"api_key"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig{
		PortalURL:   GetPortalURL(),
		IncubateURL: GetIncubateURL(),
		ProjectID:   GetProjectID(),
		UserID:      GetUserID(),
		APIKey:      maskKey(GetAPIKey()),
	}

	switch configFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unknown format: %s", configFormat)
	}
}

// maskKey keeps the conventional vsl_ prefix visible and hides the rest
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + strings.Repeat("*", len(key)-8)
}
