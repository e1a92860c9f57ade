package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/ragtoxiv/internal/pipeline"
	"github.com/csheth/ragtoxiv/internal/session"
)

const askTimeout = 5 * time.Minute

type sessionOutputMsg struct {
	output   session.Output
	settings pipeline.Settings
	prompt   string
}

// askJob hands one line to the session. The session is only touched from
// jobs, and the model never starts a second job before the first reports.
func askJob(s *session.Session, line string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, askTimeout)
		defer cancel()
		out := s.Handle(ctx, line)
		msg := sessionOutputMsg{output: out, settings: s.Settings(), prompt: s.Prompt()}
		if err := ctx.Err(); err != nil {
			return msg, err
		}
		return msg, nil
	}
}
