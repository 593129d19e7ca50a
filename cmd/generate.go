package cmd

import (
	"strings"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/spf13/cobra"
)

var (
	generateConversation string
	generateNoStream     bool
)

var generateCmd = &cobra.Command{
	Use:     "generate <prompt>",
	Aliases: []string{"gen", "g"},
	Short:   "Generate an answer for a single prompt",
	Long: `Send one prompt to the generation service and print the answer.

The answer streams in by default; --no-stream waits for the whole answer
and shows progress while it is being written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		prompt := strings.Join(args, " ")
		_, err = generate(cmd.Context(), a, "generate", prompt, ai.GenerationRequest{
			Prompt:         prompt,
			ConversationID: generateConversation,
			Streaming:      !generateNoStream,
		})
		return err
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateConversation, "conversation", "c", "", "Continue an existing conversation")
	generateCmd.Flags().BoolVar(&generateNoStream, "no-stream", false, "Wait for the complete answer instead of streaming")
}
