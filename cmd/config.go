package cmd

import (
	"fmt"
	"os"

	"github.com/arin/scribe-cli/internal/config"
	"github.com/spf13/cobra"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage scribe configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(config.Default(), path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s.\n", path)
		return nil
	},
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <url>",
	Short: "Set the generation service URL (default: " + config.DefaultAPIURL + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIURL(configPath(), args[0]); err != nil {
			return fmt.Errorf("failed to save service URL: %w", err)
		}
		fmt.Printf("Service URL set to %s.\n", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Service URL:       %s\n", cfg.APIURL)
		fmt.Printf("Request timeout:   %s\n", cfg.RequestTimeout)
		fmt.Printf("Refresh interval:  %s\n", cfg.RefreshInterval)
		fmt.Printf("Progress:          +%d every %s, up to %d%%\n", cfg.ProgressStep, cfg.ProgressInterval, cfg.ProgressCeiling)
		fmt.Printf("Log level:         %s\n", cfg.LogLevel)
		fmt.Printf("Config file:       %s\n", configPath())
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(setURLCmd)
	configCmd.AddCommand(configShowCmd)
}
