// Package session implements the interactive question loop shared by the
// line-oriented CLI and the terminal UI.
package session

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/csheth/ragtoxiv/internal/mention"
	"github.com/csheth/ragtoxiv/internal/pipeline"
	"github.com/csheth/ragtoxiv/internal/retrieval"
)

// Kind tells the front end how to present an Output.
type Kind int

const (
	KindNone Kind = iota
	KindInfo
	KindError
	KindAnswer
	KindQuit
)

// Output is the response to one input line.
type Output struct {
	Kind Kind
	Text string
	// Notice precedes the text, for example when a question switched the
	// active category.
	Notice string
	// Papers is the number of papers behind an answer.
	Papers int
}

// Session holds the mutable settings of one interactive run.
type Session struct {
	responder *pipeline.Responder
	settings  pipeline.Settings
}

// New starts a session with settings.
func New(responder *pipeline.Responder, settings pipeline.Settings) *Session {
	return &Session{responder: responder, settings: settings}
}

// Settings returns the current settings.
func (s *Session) Settings() pipeline.Settings {
	return s.settings
}

// Prompt is shown before each input line.
func (s *Session) Prompt() string {
	return fmt.Sprintf("[%s] >>> ", s.settings.Category)
}

// Commands lists the in-band commands with their descriptions.
var Commands = [][2]string{
	{"/cat <category>", "Change category (e.g., /cat math.CO)"},
	{"/mode <mode>", "Change mode (title, first_sentence, full_abstract)"},
	{"/files <n>", "Change files to load (e.g., /files 3)"},
	{"/list", "List available categories"},
	{"/help", "Show help message"},
	{"/quit", "Exit"},
}

// Banner describes the session settings and commands.
func (s *Session) Banner() string {
	rule := strings.Repeat("=", 60)
	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "arXiv Paper Assistant - CLI Mode")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Context mode: %s\n", s.settings.Mode)
	fmt.Fprintf(&b, "Current category: %s\n", s.settings.Category)
	fmt.Fprintf(&b, "Files to load: %d\n", s.settings.MaxFiles)
	fmt.Fprintf(&b, "LLM model: %s\n", s.settings.Model)
	fmt.Fprintf(&b, "Available categories: %s\n", listOrNone(s.responder.Categories()))
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Commands:")
	for _, c := range Commands {
		fmt.Fprintf(&b, "  %-16s - %s\n", c[0], c[1])
	}
	fmt.Fprint(&b, rule)
	return b.String()
}

// Handle processes one line of input.
func (s *Session) Handle(ctx context.Context, line string) Output {
	input := strings.TrimSpace(line)
	if input == "" {
		return Output{}
	}
	if strings.HasPrefix(input, "/") {
		return s.command(input)
	}
	return s.ask(ctx, input)
}

func (s *Session) command(input string) Output {
	name, arg, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/bye":
		return Output{Kind: KindQuit, Text: "Goodbye!"}
	case "/cat":
		if arg == "" {
			return errorf("Usage: /cat <category>")
		}
		available := s.responder.Categories()
		if !slices.Contains(available, arg) {
			return errorf("Category '%s' not available. Available: %s", arg, listOrNone(available))
		}
		s.settings.Category = arg
		return infof("Switched to %s (%d papers loaded)", arg, s.responder.PaperCount(arg, s.settings))
	case "/mode":
		mode, err := retrieval.ParseMode(arg)
		if err != nil {
			return errorf("Invalid mode. Choose: title, first_sentence, full_abstract")
		}
		s.settings.Mode = mode
		return infof("Context mode changed to: %s", mode)
	case "/files":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return errorf("Invalid number. Usage: /files 3")
		}
		if n < 1 {
			return errorf("Files must be at least 1")
		}
		s.settings.MaxFiles = n
		return infof("Files changed to %d (%d papers loaded)", n, s.responder.PaperCount(s.settings.Category, s.settings))
	case "/list":
		return infof("Available categories: %s", listOrNone(s.responder.Categories()))
	case "/help":
		return Output{Kind: KindInfo, Text: mention.HelpMessage(s.responder.Categories())}
	}
	return errorf("Unknown command %s. Type /help or see the banner for commands.", name)
}

func (s *Session) ask(ctx context.Context, question string) Output {
	var notice string
	if detected, ok := mention.DetectCategory(question); ok && detected != s.settings.Category {
		if slices.Contains(s.responder.Categories(), detected) {
			s.settings.Category = detected
			notice = fmt.Sprintf("(Detected category: %s)", detected)
		}
	}

	result, err := s.responder.Respond(ctx, s.settings, pipeline.Request{Question: question})
	if err != nil {
		return Output{Kind: KindError, Notice: notice, Text: fmt.Sprintf("Error: %v", err)}
	}
	switch result.Kind {
	case pipeline.KindNoData:
		return Output{
			Kind:   KindError,
			Notice: notice,
			Text:   fmt.Sprintf("No papers found for %s. Available: %s", result.Category, listOrNone(s.responder.Categories())),
		}
	case pipeline.KindFallback:
		text := result.Text
		if result.Err != nil {
			text = fmt.Sprintf("Error: %v", result.Err)
		}
		return Output{Kind: KindError, Notice: notice, Text: text, Papers: result.Papers}
	}
	return Output{Kind: KindAnswer, Notice: notice, Text: result.Text, Papers: result.Papers}
}

func infof(format string, args ...any) Output {
	return Output{Kind: KindInfo, Text: fmt.Sprintf(format, args...)}
}

func errorf(format string, args ...any) Output {
	return Output{Kind: KindError, Text: fmt.Sprintf(format, args...)}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
