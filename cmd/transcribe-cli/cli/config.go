package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the CLI's persisted settings.
type Config struct {
	ServerURL   string `mapstructure:"server_url"`
	WatchFolder string `mapstructure:"watch_folder"`
}

// InitConfig loads ~/.transcriber.yaml if present, per spec.md §9's CLI
// supplement (mirrors the teacher's internal/cli/config.go).
func InitConfig() {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	viper.AddConfigPath(home)
	viper.SetConfigType("yaml")
	viper.SetConfigName(".transcriber")
	viper.SetDefault("server_url", "http://localhost:8080")

	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// SaveConfig persists the given non-empty fields to ~/.transcriber.yaml.
func SaveConfig(serverURL, watchFolder string) error {
	if serverURL != "" {
		viper.Set("server_url", serverURL)
	}
	if watchFolder != "" {
		viper.Set("watch_folder", watchFolder)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(home, ".transcriber.yaml")
	return viper.WriteConfigAs(configPath)
}

// GetConfig returns the CLI's current configuration.
func GetConfig() *Config {
	return &Config{
		ServerURL:   viper.GetString("server_url"),
		WatchFolder: viper.GetString("watch_folder"),
	}
}
