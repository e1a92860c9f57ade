// Package tui is a Bubble Tea front end for the interactive session.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/ragtoxiv/internal/pipeline"
	"github.com/csheth/ragtoxiv/internal/session"
)

// Config wires the UI to a session.
type Config struct {
	Session *session.Session
	Context context.Context
	Logger  *zap.Logger
}

type model struct {
	session  *session.Session
	settings pipeline.Settings
	prompt   string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	layout   pageLayout
	jobs     *jobBus

	stage      stage
	transcript []transcriptEntry
	lastError  string
	quitting   bool
}

// New returns the root model.
func New(cfg Config) tea.Model {
	input := textinput.New()
	input.Placeholder = composerPlaceholder
	input.Prompt = cfg.Session.Prompt()
	input.CharLimit = 2000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	layout := newPageLayout()
	vp := viewport.New(layout.viewportWidth, layout.viewportHeight)

	m := &model{
		session:  cfg.Session,
		settings: cfg.Session.Settings(),
		prompt:   cfg.Session.Prompt(),
		input:    input,
		viewport: vp,
		spinner:  spin,
		layout:   layout,
		jobs:     newJobBus(cfg.Context, cfg.Logger),
		stage:    stageInput,
	}
	m.transcript = append(m.transcript, transcriptEntry{
		Kind:    entryOutput,
		Content: helperStyle.Render(cfg.Session.Banner()),
	})
	m.refreshViewport()
	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.input.Width = m.layout.viewportWidth - len(m.prompt) - 1
		m.refreshViewport()
		return m, nil
	case spinner.TickMsg:
		if m.stage != stageWaiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case jobSignalMsg:
		return m, nil
	case jobResultEnvelope:
		return m.handleResult(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	}
	if m.stage == stageWaiting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m *model) submit() (tea.Model, tea.Cmd) {
	if m.stage == stageWaiting {
		return m, nil
	}
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.lastError = ""
	m.appendEntry(transcriptEntry{Kind: entryQuestion, Content: m.prompt + line})
	m.stage = stageWaiting
	return m, tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindAsk, askJob(m.session, line)))
}

func (m *model) handleResult(env jobResultEnvelope) (tea.Model, tea.Cmd) {
	m.stage = stageInput
	if env.Snapshot.Err != "" {
		m.lastError = env.Snapshot.Err
	}
	payload, ok := env.Payload.(sessionOutputMsg)
	if !ok {
		return m, nil
	}
	m.settings = payload.settings
	m.prompt = payload.prompt
	m.input.Prompt = payload.prompt
	if rendered := renderOutput(payload.output, m.layout); rendered != "" {
		m.appendEntry(transcriptEntry{Kind: entryOutput, Content: rendered})
	}
	if payload.output.Kind == session.KindQuit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) appendEntry(entry transcriptEntry) {
	m.transcript = append(m.transcript, entry)
	if len(m.transcript) > transcriptLimit {
		m.transcript = m.transcript[len(m.transcript)-transcriptLimit:]
	}
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(renderTranscript(m.transcript, m.layout))
	m.viewport.GotoBottom()
}

// Run starts the program on the terminal until the user quits.
func Run(cfg Config, altScreen bool) error {
	opts := []tea.ProgramOption{}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.Context != nil {
		opts = append(opts, tea.WithContext(cfg.Context))
	}
	_, err := tea.NewProgram(New(cfg), opts...).Run()
	if err != nil && cfg.Context != nil && cfg.Context.Err() != nil {
		return nil
	}
	return err
}
