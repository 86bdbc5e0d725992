package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hologram-cli/internal/auth"
	"hologram-cli/internal/config"
)

var (
	cfgAPIKey  string
	cfgOrgID   string
	cfgBaseURL string
)

// configureCmd stores credentials for later commands
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save Hologram API credentials",
	Long: `Stores the API key, organization ID and (optionally) the API base URL in
the config file so 'records' and 'exporter' can run without flags.

Example:
  hologram-cli configure --key 2ab9f... --org 12345`,
	Run: func(cmd *cobra.Command, args []string) {
		baseURL := strings.TrimRight(cfgBaseURL, "/")

		if err := config.SaveCredentials(cfgAPIKey, cfgOrgID, baseURL); err != nil {
			slog.Error("failed to save configuration file", "error", err)
			os.Exit(1)
		}

		where := viper.ConfigFileUsed()
		if where == "" {
			where = "$HOME/.hologram-cli.yaml"
		}
		fmt.Printf("Saved API key %s for org %s to %s\n", auth.RedactKey(cfgAPIKey), cfgOrgID, where)
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&cfgAPIKey, "key", "", "Hologram API key")
	configureCmd.Flags().StringVar(&cfgOrgID, "org", "", "Hologram organization ID")
	configureCmd.Flags().StringVar(&cfgBaseURL, "url", "", "API base URL (default https://dashboard.hologram.io)")

	_ = configureCmd.MarkFlagRequired("key")
	_ = configureCmd.MarkFlagRequired("org")
}
