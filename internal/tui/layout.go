package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/ragtoxiv/internal/session"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
	composerHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
		composerHeight: 1,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	l.composerHeight = 1
	const chrome = 8
	usable := height - chrome - l.composerHeight
	if usable < 6 {
		usable = 6
	}
	l.viewportHeight = usable
}

func (l pageLayout) wrapWidth(indent int) int {
	width := l.viewportWidth - indent
	if width < 20 {
		return 20
	}
	return width
}

func renderTranscript(entries []transcriptEntry, layout pageLayout) string {
	if len(entries) == 0 {
		return helperStyle.Render("Ask a question about the active category. Answers will appear here.")
	}
	wrap := layout.wrapWidth(2)
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch entry.Kind {
		case entryQuestion:
			parts = append(parts, questionStyle.Render(wordwrap.String(entry.Content, wrap)))
		default:
			parts = append(parts, indentMultiline(entry.Content, "  "))
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderOutput(out session.Output, layout pageLayout) string {
	return session.Render(out, layout.wrapWidth(2))
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}
