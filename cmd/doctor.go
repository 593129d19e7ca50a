package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and service health",
	Long: `Run a health check on your scribe setup.
Verifies the configuration, service connectivity and the conversation API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 scribe doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		// 1. Config directory
		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", fmt.Errorf("warn:~/.scribe not found, run: scribe config init")
			}
			if !info.IsDir() {
				return "", fmt.Errorf("~/.scribe exists but is not a directory")
			}
			return dir, nil
		})

		// 2. Config valid
		cfg, cfgErr := loadConfig()
		check("Configuration valid", func() (string, error) {
			if cfgErr != nil {
				return "", cfgErr
			}
			return cfg.APIURL, nil
		})
		if cfgErr != nil {
			fmt.Fprintln(os.Stderr)
			red.Fprintf(os.Stderr, "  Fix the configuration before checking the service.\n\n")
			return nil
		}

		client := ai.NewClient(cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		// 3. Service reachable
		check("Generation service reachable", func() (string, error) {
			status, err := client.Health(ctx)
			if err != nil {
				return "", fmt.Errorf("%s", ai.FailureReason(err))
			}
			if !status.Healthy() {
				return "", fmt.Errorf("warn:service reports status %q", status.Status)
			}
			return fmt.Sprintf("%s at %s", status.Describe(), client.BaseURL()), nil
		})

		// 4. Conversation API
		check("Conversation API", func() (string, error) {
			convs, err := client.ListConversations(ctx)
			if err != nil {
				return "", fmt.Errorf("%s", ai.FailureReason(err))
			}
			return fmt.Sprintf("%d conversations", len(convs)), nil
		})

		// 5. OS and arch
		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		// Summary
		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}
