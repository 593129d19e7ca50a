package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var conversationSearch string

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations stored by the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.store.ListConversations(cmd.Context()); err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		convs := a.store.Filter(conversationSearch)

		if len(convs) == 0 {
			if conversationSearch != "" {
				fmt.Printf("No conversations match %q.\n", conversationSearch)
			} else {
				fmt.Println("No conversations yet.")
			}
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)
		for _, c := range convs {
			dim.Printf("[%s] ", c.CreatedAt.Local().Format("2006-01-02 15:04"))
			fmt.Printf("%s ", c.Title)
			cyan.Printf("%s\n", c.ID)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		msgs, err := a.store.LoadMessages(cmd.Context(), args[0])
		if errors.Is(err, conversation.ErrNotFound) {
			return fmt.Errorf("no conversation with id %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		if len(msgs) == 0 {
			color.New(color.FgHiBlack).Fprintln(os.Stderr, "  This conversation has no messages.")
			return nil
		}
		printMessages(msgs)
		return nil
	},
}

func init() {
	conversationsCmd.Flags().StringVarP(&conversationSearch, "search", "s", "", "Only show conversations whose title contains this text")
}
