package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	apiURL  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "A terminal client for the content generation service",
	Long: `scribe talks to a content generation service from your terminal.
Answers stream in as they are written; Ctrl-C stops a running answer.

Examples:
  scribe chat
  scribe generate "three names for a coffee shop"
  scribe blog "remote work" --style casual --length long
  scribe social "our product launch" --tone professional --hashtags
  scribe conversations --search launch`,
	SilenceUsage:               true,
	SilenceErrors:              true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.scribe/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "Generation service URL, overrides the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(blogCmd)
	rootCmd.AddCommand(socialCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}
