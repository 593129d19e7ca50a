package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/arin/scribe-cli/internal/ai"
	"github.com/arin/scribe-cli/internal/conversation"
	"github.com/arin/scribe-cli/internal/history"
	"github.com/arin/scribe-cli/internal/session"
	"github.com/arin/scribe-cli/internal/stats"
	"github.com/arin/scribe-cli/internal/ui"
)

// generation is the result of one submitted prompt.
type generation struct {
	session *session.Session
	final   conversation.Message
	text    string
}

// generate submits req, prints the answer as it arrives and records the
// outcome in history and stats. Ctrl-C cancels the answer, not the
// process. label is what history shows as the prompt.
func generate(ctx context.Context, a *app, command, label string, req ai.GenerationRequest) (*generation, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	msg := "Thinking..."
	if !req.Streaming {
		msg = "Generating..."
	}
	sp := ui.NewSpinner(msg)
	var stopSpinner sync.Once
	halt := func() { stopSpinner.Do(sp.Stop) }
	if !req.Streaming {
		a.progress.set(sp.SetProgress)
		defer a.progress.set(nil)
	}

	mw := ui.NewMessageWriter(os.Stdout, "  ", req.ConversationID)
	unsubscribe := a.store.Subscribe(func(c conversation.Change) {
		if (c.Kind == conversation.ChangeDelta || c.Kind == conversation.ChangeFinalized) &&
			c.Message.ID == mw.MessageID() {
			halt()
		}
		mw.Observe(c)
	})
	defer unsubscribe()

	sp.Start()
	s, err := a.manager.Submit(ctx, req)
	if err != nil {
		halt()
		if errors.Is(err, session.ErrBusy) {
			return nil, fmt.Errorf("wait for the current answer to finish: %w", err)
		}
		return nil, err
	}

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Cancel()
		<-s.Done()
	}
	halt()

	g := &generation{session: s, final: mw.Final(), text: mw.Text()}
	record(a, command, label, g)
	return g, nil
}

func record(a *app, command, label string, g *generation) {
	report := g.session.Report()
	entry := history.Entry{
		Command:        command,
		ConversationID: report.ConversationID,
		Prompt:         label,
		Preview:        g.text,
		State:          g.final.State.String(),
		Error:          g.final.ErrorText,
		Chars:          report.Chars,
	}
	if err := history.Save(entry); err != nil {
		a.logger.Debug().Err(err).Msg("failed to save history")
	}
	if err := stats.Save(stats.FromReport(command, report)); err != nil {
		a.logger.Debug().Err(err).Msg("failed to save stats")
	}
	a.logger.Debug().
		Str("mode", report.Mode).
		Int("prompt_chars", len(g.session.Request().Prompt)).
		Dur("first_byte", report.FirstByte).
		Dur("total", report.Total).
		Int("chunks", report.Chunks).
		Stringer("state", report.State).
		Msg("generation finished")
}
