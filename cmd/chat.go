package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatNoStream     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session with the generation service.
Answers stream in as they are written; Ctrl-C stops the current answer.

Commands inside the session:
  /new    start a new conversation
  exit    end the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  scribe chat")
		dim.Fprintf(os.Stderr, "  Connected to %s. Type 'exit' to quit.\n\n", a.cfg.APIURL)

		if chatConversation != "" {
			msgs, err := a.store.Open(cmd.Context(), chatConversation)
			if err != nil {
				return fmt.Errorf("failed to open conversation: %w", err)
			}
			printMessages(msgs)
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			green.Fprint(os.Stderr, "  you → ")
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			switch input {
			case "exit", "quit", "bye":
				dim.Fprintf(os.Stderr, "\n  Bye!\n\n")
				return nil
			case "/new":
				a.store.StartNew()
				dim.Fprintf(os.Stderr, "  Started a new conversation.\n\n")
				continue
			}

			cyan.Fprintln(os.Stderr, "  scribe →")
			_, err := generate(cmd.Context(), a, "chat", input, ai.GenerationRequest{
				Prompt:         input,
				ConversationID: a.store.Active(),
				Streaming:      !chatNoStream,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
			}
		}

		return scanner.Err()
	},
}

// printMessages prints a conversation transcript.
func printMessages(msgs []conversation.Message) {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	for _, m := range msgs {
		if m.Role == conversation.RoleUser {
			green.Printf("  you → ")
		} else {
			cyan.Printf("  scribe → ")
		}
		fmt.Println(m.Content)
		if !m.CreatedAt.IsZero() {
			dim.Printf("  %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Println()
	}
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Resume an existing conversation")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "Wait for complete answers instead of streaming")
}
