package cmd

import (
	"os"
	"strings"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/arin/scribe-cli/internal/prompt"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	blogStyle  string
	blogLength string
)

var blogCmd = &cobra.Command{
	Use:   "blog <topic>",
	Short: "Write a blog post about a topic",
	Long: `Write a blog post about a topic.

Styles: casual, professional, humorous, informative.
Lengths: short (~50 words), medium (~100 words), long (~200 words).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		length, err := prompt.ParseLength(blogLength)
		if err != nil {
			return err
		}
		topic := strings.Join(args, " ")
		text, err := prompt.Blog(prompt.BlogOptions{Topic: topic, Style: blogStyle, Length: length})
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		g, err := generate(cmd.Context(), a, "blog", topic, ai.GenerationRequest{Prompt: text})
		if err != nil {
			return err
		}
		printCounts(g)
		return nil
	},
}

// printCounts shows the word and character count of a completed answer.
func printCounts(g *generation) {
	if g.final.State != conversation.StateComplete {
		return
	}
	dim := color.New(color.FgHiBlack)
	dim.Fprintf(os.Stderr, "  %d words · %d characters\n\n", prompt.WordCount(g.text), prompt.CharCount(g.text))
}

func init() {
	blogCmd.Flags().StringVar(&blogStyle, "style", "informative", "Writing style")
	blogCmd.Flags().StringVar(&blogLength, "length", string(prompt.Medium), "short, medium or long")
}
