package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/arin/scribe-cli/internal/stats"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and response times",
	Long: `Display a dashboard of your scribe usage: generation counts, success
rates, time to first chunk, total response times and the most active
conversations.

Data is collected automatically and stored locally in ~/.scribe/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 scribe stats\n\n")

		if summary.TotalGenerations == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Use scribe for a while and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		// Overview
		green.Fprintf(os.Stderr, "  Answers:     ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalGenerations)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Completed:   ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}

		// Latency
		if summary.AvgFirstByteMs > 0 {
			green.Fprintf(os.Stderr, "  First chunk: ")
			fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstByteMs)
		}
		green.Fprintf(os.Stderr, "  Total time:  ")
		fmt.Fprintf(os.Stderr, "%dms avg", summary.AvgTotalMs)
		dim.Fprintf(os.Stderr, "  (%.1f chunks per answer)\n", summary.AvgChunks)

		printBreakdown := func(title string, counts map[string]int) {
			if len(counts) == 0 {
				return
			}
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  "+title)
			for _, k := range keys {
				pct := float64(counts[k]) / float64(summary.TotalGenerations) * 100
				bar := strings.Repeat("█", int(pct/5))
				dim.Fprintf(os.Stderr, "  %-10s ", k)
				fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, counts[k], pct)
			}
		}
		printBreakdown("Outcomes", summary.StateBreakdown)
		printBreakdown("Modes", summary.ModeBreakdown)
		printBreakdown("Commands", summary.CommandBreakdown)

		// Top conversations
		if len(summary.TopConversations) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Conversations")
			for i, tc := range summary.TopConversations {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", tc.ConversationID)
				dim.Fprintf(os.Stderr, "(%dx)\n", tc.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}
