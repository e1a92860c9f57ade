// Package retrieval turns stored snapshots into the bounded context block that
// is handed to the language model.
package retrieval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/csheth/ragtoxiv/internal/arxiv"
)

// Mode selects how much of each paper enters the context.
type Mode string

const (
	ModeTitle         Mode = "title"
	ModeFirstSentence Mode = "first_sentence"
	ModeFullAbstract  Mode = "full_abstract"
)

// Modes lists the supported modes in display order.
var Modes = []Mode{ModeTitle, ModeFirstSentence, ModeFullAbstract}

// ErrUnknownMode is returned by ParseMode for unsupported values.
var ErrUnknownMode = errors.New("unknown context mode")

// ParseMode validates a mode name. Dashes are accepted in place of underscores.
func ParseMode(value string) (Mode, error) {
	normalized := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	for _, mode := range Modes {
		if normalized == mode {
			return mode, nil
		}
	}
	return "", fmt.Errorf("%w %q (choose title, first_sentence, full_abstract)", ErrUnknownMode, value)
}

// DefaultMaxChars keeps contexts far below the window of the hosted models.
const DefaultMaxChars = 120_000

// Package is the built context.
type Package struct {
	Text      string
	Papers    int
	Omitted   int
	Truncated bool
}

// Builder renders snapshots into a context block of at most maxChars runes.
type Builder struct {
	maxChars int
}

// NewBuilder returns a Builder with the given rune budget. Non-positive values
// fall back to DefaultMaxChars.
func NewBuilder(maxChars int) *Builder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Builder{maxChars: maxChars}
}

// Build concatenates one entry per paper, newest snapshot first and in stored
// order within a snapshot. Entries are never split: when the budget runs out
// the remaining papers are dropped and a marker reports how many.
func (b *Builder) Build(snapshots []arxiv.Snapshot, mode Mode) Package {
	var entries []string
	for _, snapshot := range snapshots {
		for _, paper := range snapshot.Papers {
			entries = append(entries, formatEntry(paper, mode))
		}
	}
	text, included := clipEntries(entries, separatorFor(mode), b.maxChars)
	pkg := Package{
		Text:    text,
		Papers:  included,
		Omitted: len(entries) - included,
	}
	if pkg.Omitted > 0 {
		pkg.Truncated = true
	}
	return pkg
}

func separatorFor(mode Mode) string {
	if mode == ModeTitle {
		return "\n"
	}
	return "\n\n"
}

func formatEntry(paper arxiv.Paper, mode Mode) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(paper.ID)
	b.WriteString("] ")
	b.WriteString(strings.TrimSpace(paper.Title))
	if link := paper.Link(); link != "" {
		b.WriteString(" (")
		b.WriteString(link)
		b.WriteString(")")
	}
	switch mode {
	case ModeFirstSentence:
		b.WriteString("\nAbstract: ")
		b.WriteString(arxiv.FirstSentence(paper.Abstract))
	case ModeFullAbstract:
		b.WriteString("\nAbstract: ")
		b.WriteString(strings.TrimSpace(paper.Abstract))
	}
	return b.String()
}

func omissionMarker(n int) string {
	if n == 1 {
		return "[... 1 more paper omitted]"
	}
	return fmt.Sprintf("[... %d more papers omitted]", n)
}

// clipEntries joins whole entries until the budget is reached. If anything
// is dropped, room is kept for the omission marker so the result still fits.
func clipEntries(entries []string, separator string, budget int) (string, int) {
	if total := joinedLen(entries, separator); total <= budget {
		return strings.Join(entries, separator), len(entries)
	}

	var builder strings.Builder
	used := 0
	included := 0
	sepLen := runeLen(separator)
	for idx, entry := range entries {
		cost := runeLen(entry)
		if included > 0 {
			cost += sepLen
		}
		marker := omissionMarker(len(entries) - idx - 1)
		markerCost := sepLen + runeLen(marker)
		if idx == len(entries)-1 {
			markerCost = 0
		}
		if used+cost+markerCost > budget {
			break
		}
		if included > 0 {
			builder.WriteString(separator)
		}
		builder.WriteString(entry)
		used += cost
		included++
	}

	marker := omissionMarker(len(entries) - included)
	if included > 0 {
		builder.WriteString(separator)
	}
	builder.WriteString(marker)
	return builder.String(), included
}

func joinedLen(entries []string, separator string) int {
	if len(entries) == 0 {
		return 0
	}
	total := runeLen(separator) * (len(entries) - 1)
	for _, entry := range entries {
		total += runeLen(entry)
	}
	return total
}

func runeLen(text string) int {
	return len([]rune(text))
}
