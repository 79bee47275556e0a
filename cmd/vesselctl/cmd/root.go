package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vesselworks/vesselctl/pkg/incubate"
	"github.com/vesselworks/vesselctl/pkg/portal"
	"github.com/vesselworks/vesselctl/pkg/tlsconfig"
)

var (
	cfgFile      string
	portalURL    string
	incubateURL  string
	apiKey       string
	projectID    string
	userID       string
	outputFormat string
	caFile       string
	insecureTLS  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vesselctl",
	Short: "CLI for the Vessel agent-job platform",
	Long: `vesselctl submits, tracks, and cancels asynchronous AI-agent jobs
on a Vessel execution service, and inspects projects and job history
through the portal API.

API keys conventionally start with the "vsl_" prefix (informational
only, not enforced).`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vesselctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&portalURL, "portal", "", "portal API URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&incubateURL, "incubator", "", "execution endpoint URL (default from config or http://localhost:8081)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "project id used for token minting")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id embedded in execution tokens")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&caFile, "ca-file", "", "PEM file with additional CA certificates")
	rootCmd.PersistentFlags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".vesselctl"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// Bind specific environment variables
	viper.BindEnv("api_key", "VESSEL_API_KEY")
	viper.BindEnv("portal_url", "VESSEL_PORTAL_URL")
	viper.BindEnv("incubate_url", "VESSEL_INCUBATE_URL")
	viper.BindEnv("project_id", "VESSEL_PROJECT_ID")
	viper.BindEnv("user_id", "VESSEL_USER_ID")

	// Config file is optional; env vars and flags may carry everything
	_ = viper.ReadInConfig()

	if portalURL == "" {
		portalURL = viper.GetString("portal_url")
	}
	if incubateURL == "" {
		incubateURL = viper.GetString("incubate_url")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
	if projectID == "" {
		projectID = viper.GetString("project_id")
	}
	if userID == "" {
		userID = viper.GetString("user_id")
	}

	// Set defaults if still empty
	if portalURL == "" {
		portalURL = "http://localhost:8080"
	}
	if incubateURL == "" {
		incubateURL = "http://localhost:8081"
	}
}

// GetPortalURL returns the configured portal URL with trailing slashes removed
func GetPortalURL() string {
	return strings.TrimRight(portalURL, "/")
}

// GetIncubateURL returns the configured execution endpoint URL
func GetIncubateURL() string {
	return strings.TrimRight(incubateURL, "/")
}

// GetAPIKey returns the configured API key
func GetAPIKey() string {
	return apiKey
}

// GetProjectID returns the configured project id
func GetProjectID() string {
	return projectID
}

// GetUserID returns the configured user id
func GetUserID() string {
	return userID
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// NewPortalClient builds a portal client from the effective configuration
func NewPortalClient() (*portal.Client, error) {
	if caFile == "" && !insecureTLS {
		return portal.NewClient(GetPortalURL(), GetAPIKey()), nil
	}
	tlsCfg, err := tlsconfig.ClientConfig(caFile, insecureTLS)
	if err != nil {
		return nil, err
	}
	return portal.NewClientWithTLS(GetPortalURL(), GetAPIKey(), tlsCfg), nil
}

// NewIncubateClient builds an execution submission client from the
// effective configuration
func NewIncubateClient() (*incubate.Client, error) {
	if caFile == "" && !insecureTLS {
		return incubate.NewClient(GetIncubateURL()), nil
	}
	tlsCfg, err := tlsconfig.ClientConfig(caFile, insecureTLS)
	if err != nil {
		return nil, err
	}
	return incubate.NewClientWithTLS(GetIncubateURL(), tlsCfg), nil
}
