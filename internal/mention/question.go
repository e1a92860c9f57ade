package mention

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	handlePattern   = regexp.MustCompile(`@\S+`)
	categoryPattern = regexp.MustCompile(`\b([a-z]{2,8}(?:-[a-z]{2})?\.[A-Z]{2})\b`)
)

// Single-word triggers must be the whole question; phrases may appear anywhere.
var (
	helpWords   = []string{"help", "?", "commands", "usage"}
	helpPhrases = []string{"how do i use", "what can you do"}
)

const helpTemplate = `I'm an arXiv paper assistant. I can help you explore recent arXiv papers.

Things I can help with:
- "summarize today's papers"
- "any papers on transformers?"
- "find papers about diffusion models"
- "explain what paper 2512.xxxxx is about"

Available categories: %s`

// Question removes @handles from text and collapses whitespace.
func Question(text string) string {
	stripped := handlePattern.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// DetectCategory returns the first arXiv category named in text, such as
// "math.CO" or "astro-ph.GA".
func DetectCategory(text string) (string, bool) {
	match := categoryPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// IsHelpRequest reports whether the question asks how to use the bot.
func IsHelpRequest(question string) bool {
	lower := strings.ToLower(strings.TrimSpace(question))
	bare := strings.TrimRight(lower, "?!. ")
	for _, word := range helpWords {
		if lower == word || bare == word {
			return true
		}
	}
	for _, phrase := range helpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// HelpMessage lists what the bot can do and which categories have data.
func HelpMessage(categories []string) string {
	list := "none fetched yet"
	if len(categories) > 0 {
		list = strings.Join(categories, ", ")
	}
	return fmt.Sprintf(helpTemplate, list)
}

// NoDataMessage answers a question about a category without snapshots.
func NoDataMessage(category string, categories []string) string {
	list := "none yet"
	if len(categories) > 0 {
		list = strings.Join(categories, ", ")
	}
	return fmt.Sprintf("Sorry, I don't have recent data for %s. Available categories: %s.", category, list)
}
