// Package answer turns raw model output into text that can be posted.
package answer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fallback is posted when the model produced nothing usable.
const Fallback = "Sorry, I couldn't put together an answer right now. Please try again in a little while."

// Indicator is appended to truncated answers.
const Indicator = "…"

var (
	thinkBlock   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	leadingLabel = regexp.MustCompile(`(?i)^(?:\*\*)?(?:answer|reply|response)(?::\*\*|\*\*:|:)\s*`)
	echoedInput  = regexp.MustCompile(`(?im)^\s*(?:user question|question)\s*:.*$`)
	fence        = regexp.MustCompile("^```[a-zA-Z]*\\s*\n?|\\s*```$")
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// Clean removes instruction artifacts that models tend to echo around the
// answer. It does not truncate.
func Clean(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = thinkBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) > 6 {
		text = strings.TrimSpace(fence.ReplaceAllString(text, ""))
	}
	text = leadingLabel.ReplaceAllString(text, "")
	text = echoedInput.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Process cleans raw output and fits it into limit characters. Empty output
// becomes Fallback. A non-positive limit disables truncation.
func Process(raw string, limit int) string {
	text := Clean(raw)
	if text == "" {
		return Fallback
	}
	return Truncate(text, limit)
}

// Truncate shortens text to at most limit runes including Indicator. It cuts
// at the last paragraph or sentence end that fits; if that would discard more
// than half of the allowance it falls back to the last word break, and only
// as a last resort cuts inside a word.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	allowance := limit - utf8.RuneCountInString(Indicator)
	if allowance <= 0 {
		return string([]rune(Indicator)[:limit])
	}
	runes := []rune(text)
	window := runes[:allowance]

	if cut := lastSentenceEnd(runes, allowance); cut > 0 && cut*2 >= allowance {
		return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace) + Indicator
	}
	if cut := lastSpace(window); cut > 0 {
		return strings.TrimRightFunc(string(window[:cut]), unicode.IsSpace) + Indicator
	}
	return string(window) + Indicator
}

// lastSentenceEnd returns the largest n <= allowance such that runes[:n] ends
// a sentence or paragraph.
func lastSentenceEnd(runes []rune, allowance int) int {
	for n := allowance; n > 0; n-- {
		last := runes[n-1]
		switch {
		case last == '\n' && n >= 2 && runes[n-2] == '\n':
			return n
		case last == '.' || last == '!' || last == '?':
			if n == len(runes) || unicode.IsSpace(runes[n]) {
				return n
			}
		}
	}
	return 0
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i > 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return 0
}
