package arxiv

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	idRegexp             = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf|html)/([0-9a-z.\-/]+?)(?:v\d+)?(?:\.pdf)?$`)
	oaiRegexp            = regexp.MustCompile(`(?i)^oai:arxiv\.org:([0-9a-z.\-/]+?)(?:v\d+)?$`)
	bareIDRegexp         = regexp.MustCompile(`(?i)^[0-9a-z.\-/]+$`)
	versionSuffix        = regexp.MustCompile(`v\d+$`)
	extraneousWhitespace = regexp.MustCompile(`\s+`)
)

// extractIdentifier accepts abs/pdf links, OAI identifiers, "arXiv:" prefixed
// ids and bare ids, and returns the id without its version suffix.
func extractIdentifier(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if matches := idRegexp.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1]
	}
	if matches := oaiRegexp.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1]
	}
	if len(input) >= len("arxiv:") && strings.EqualFold(input[:len("arxiv:")], "arxiv:") {
		input = strings.TrimSpace(input[len("arxiv:"):])
	}
	if strings.Contains(input, "://") || !bareIDRegexp.MatchString(input) {
		return ""
	}
	return versionSuffix.ReplaceAllString(input, "")
}

func normalizeWhitespace(s string) string {
	return extraneousWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// FirstSentence returns the abstract up to and including the first '.', '!'
// or '?' that is followed by whitespace or ends the text. Without such a
// boundary the whole text is returned.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	for idx, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := idx + utf8.RuneLen(r)
		if end == len(text) {
			return text
		}
		next, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsSpace(next) {
			return text[:end]
		}
	}
	return text
}
