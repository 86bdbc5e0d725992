package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hologram-cli/internal/config"
)

var cfgFile string
var jsonOutput bool
var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hologram-cli",
	Short: "Download device data records from the Hologram API",
	Long: `Retrieve time-series sensor records sent by Hologram devices, decode
their "~" delimited payloads and export them as a table, JSON, CSV or SQLite.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		if err := config.InitConfig(cfgFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		setupLogger()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hologram-cli.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")

	// Credentials may come from flags, HOLOGRAM_* env vars or the config file.
	rootCmd.PersistentFlags().String("api-key", "", "Hologram API key")
	rootCmd.PersistentFlags().String("org-id", "", "Hologram organization ID")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL")
	_ = viper.BindPFlag(config.KeyAPIKey, rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag(config.KeyOrgID, rootCmd.PersistentFlags().Lookup("org-id"))
	_ = viper.BindPFlag(config.KeyBaseURL, rootCmd.PersistentFlags().Lookup("base-url"))
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
