package session

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const wrapWidth = 100

var (
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
)

// Render formats out for a terminal of the given width.
func Render(out Output, width int) string {
	if width <= 0 {
		width = wrapWidth
	}
	text := wordwrap.String(out.Text, width)
	var body string
	switch out.Kind {
	case KindNone:
		return ""
	case KindError:
		body = errorStyle.Render(text)
	case KindInfo, KindQuit:
		body = infoStyle.Render(text)
	default:
		body = text
		if out.Papers > 0 {
			body = noticeStyle.Render(fmt.Sprintf("(%d papers)", out.Papers)) + "\n\n" + text
		}
	}
	if out.Notice != "" {
		body = noticeStyle.Render(out.Notice) + "\n" + body
	}
	return body
}

// Run reads lines from in until EOF, a quit command or ctx cancellation,
// writing responses to out.
func Run(ctx context.Context, s *Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, s.Banner())
	fmt.Fprintln(out)

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, promptStyle.Render(s.Prompt()))
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out, "\nGoodbye!")
			select {
			case err := <-scanErr:
				return err
			default:
				return nil
			}
		}

		result := s.Handle(ctx, line)
		if rendered := Render(result, wrapWidth); rendered != "" {
			fmt.Fprintln(out, rendered)
			fmt.Fprintln(out)
		}
		if result.Kind == KindQuit {
			return nil
		}
	}
}
