package answer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCleanStripsArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"label", "Answer: Two papers cover diffusion.", "Two papers cover diffusion."},
		{"bold label", "**Reply:** Yes.", "Yes."},
		{"think block", "<think>reasoning here</think>\nThe answer.", "The answer."},
		{"fenced", "```markdown\nFenced answer.\n```", "Fenced answer."},
		{"echoed question", "User question: what is new?\n\nSeveral things.", "Several things."},
		{"whitespace", "   \n plain \n  ", "plain"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestProcessFallsBackOnEmptyOutput(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Fallback, Process("", 500))
	assert.Equal(t, Fallback, Process("  <think>only thoughts</think> ", 500))
}

func TestProcessLeavesShortAnswersAlone(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Short.", Process("Short.", 500))
	long := strings.Repeat("word ", 400)
	assert.Equal(t, strings.TrimSpace(long), Process(long, 0))
}

func TestTruncateAtSentenceBoundary(t *testing.T) {
	t.Parallel()
	text := "First sentence is here. Second sentence is here. Third sentence runs past the limit."
	limit := len("First sentence is here. Second sentence is here. Third")
	got := Truncate(text, limit)
	assert.Equal(t, "First sentence is here. Second sentence is here."+Indicator, got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), limit)
}

func TestTruncatePrefersParagraphBreak(t *testing.T) {
	t.Parallel()
	text := "Paragraph one has words and more words\n\nParagraph two keeps going for a while"
	got := Truncate(text, 50)
	assert.Equal(t, "Paragraph one has words and more words"+Indicator, got)
}

func TestTruncateFallsBackToWordBoundary(t *testing.T) {
	t.Parallel()
	text := "Tiny. " + strings.Repeat("longwords ", 20)
	got := Truncate(text, 60)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 60)
	assert.True(t, strings.HasSuffix(got, "longwords"+Indicator), got)
}

func TestTruncateHardCutsWithoutWhitespace(t *testing.T) {
	t.Parallel()
	got := Truncate(strings.Repeat("x", 100), 10)
	assert.Equal(t, strings.Repeat("x", 9)+Indicator, got)
}

func TestTruncateNeverSplitsSentenceWhenBoundaryFits(t *testing.T) {
	t.Parallel()
	sentence := "Each sentence here is exactly the same length. "
	text := strings.Repeat(sentence, 30)
	for _, limit := range []int{120, 333, 500, 777} {
		got := Truncate(text, limit)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), limit)
		body := strings.TrimSuffix(got, Indicator)
		assert.True(t, strings.HasSuffix(body, "length."), "limit %d: %q", limit, got)
	}
}
