package cmd

import (
	"strings"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	socialTone     string
	socialLength   string
	socialHashtags bool
	socialEmojis   bool
	socialAudience string
)

var socialCmd = &cobra.Command{
	Use:   "social <topic>",
	Short: "Write a social media post about a topic",
	Long: `Write a social media post about a topic.

Tones: casual, professional, humorous, informative.
Lengths: short (~50 words), medium (~150 words), long (~250 words).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		length, err := prompt.ParseLength(socialLength)
		if err != nil {
			return err
		}
		topic := strings.Join(args, " ")
		text, err := prompt.Social(prompt.SocialOptions{
			Topic:    topic,
			Tone:     socialTone,
			Length:   length,
			Hashtags: socialHashtags,
			Emojis:   socialEmojis,
			Audience: socialAudience,
		})
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		g, err := generate(cmd.Context(), a, "social", topic, ai.GenerationRequest{Prompt: text})
		if err != nil {
			return err
		}
		printCounts(g)
		return nil
	},
}

func init() {
	socialCmd.Flags().StringVar(&socialTone, "tone", "casual", "Tone of the post")
	socialCmd.Flags().StringVar(&socialLength, "length", string(prompt.Short), "short, medium or long")
	socialCmd.Flags().BoolVar(&socialHashtags, "hashtags", true, "Include hashtags")
	socialCmd.Flags().BoolVar(&socialEmojis, "emojis", true, "Include emojis")
	socialCmd.Flags().StringVar(&socialAudience, "audience", "general", "Target audience")
}
