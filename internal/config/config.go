package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/viper"

	"hologram-cli/internal/client"
	"hologram-cli/pkg/fetcher"
)

// Config keys, also readable from HOLOGRAM_<KEY> environment variables.
const (
	KeyBaseURL = "base_url"
	KeyAPIKey  = "api_key"
	KeyOrgID   = "org_id"
	KeyTimeout = "timeout"
)

const fileName = ".hologram-cli"

// Settings is the resolved CLI configuration.
type Settings struct {
	BaseURL string
	APIKey  string
	OrgID   string
	Timeout time.Duration
}

// InitConfig reads in config file and ENV variables if set. A missing config
// file is not an error; an unreadable or malformed one is.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Annotate(err, "find home directory")
		}

		// Search config in home directory with name ".hologram-cli" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(fileName)
	}

	viper.SetDefault(KeyBaseURL, fetcher.DefaultBaseURL)
	viper.SetDefault(KeyTimeout, client.DefaultTimeout)

	viper.SetEnvPrefix("HOLOGRAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return nil
		}
		return errors.Annotatef(err, "read config %s", viper.ConfigFileUsed())
	}
	return nil
}

// Load resolves the current settings from viper.
func Load() Settings {
	return Settings{
		BaseURL: viper.GetString(KeyBaseURL),
		APIKey:  viper.GetString(KeyAPIKey),
		OrgID:   viper.GetString(KeyOrgID),
		Timeout: viper.GetDuration(KeyTimeout),
	}
}

// Validate reports missing credentials.
func (s Settings) Validate() error {
	if s.APIKey == "" {
		return errors.NotValidf("missing api key (run 'hologram-cli configure' or set HOLOGRAM_API_KEY)")
	}
	if s.OrgID == "" {
		return errors.NotValidf("missing org id (run 'hologram-cli configure' or set HOLOGRAM_ORG_ID)")
	}
	return nil
}

// FilePath is the config file in use, or the default location SaveCredentials
// creates when none was found.
func FilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, fileName+".yaml")
}

// SaveCredentials updates the config file with the API credentials.
func SaveCredentials(apiKey, orgID, baseURL string) error {
	viper.Set(KeyAPIKey, apiKey)
	viper.Set(KeyOrgID, orgID)
	if baseURL != "" {
		viper.Set(KeyBaseURL, baseURL)
	}

	// Ensure the file exists before writing
	if err := viper.WriteConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return errors.Annotate(viper.SafeWriteConfig(), "create config file")
		}
		// If it exists but failed to write, try writing to default path
		home, _ := os.UserHomeDir()
		path := filepath.Join(home, fileName+".yaml")
		return errors.Annotatef(viper.WriteConfigAs(path), "write %s", path)
	}
	return nil
}
