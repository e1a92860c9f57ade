// Package mention decides which Mastodon notifications the bot may answer and
// extracts the question a mention asks.
package mention

import (
	"strings"
	"time"
)

// Visibility is the audience of the status behind a notification.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	// VisibilityPrivate is Mastodon's followers-only audience.
	VisibilityPrivate Visibility = "private"
	VisibilityDirect  Visibility = "direct"
)

// TypeMention is the notification type the bot reacts to.
const TypeMention = "mention"

// Notification is one inbound event as seen by the bot. Text is plain text
// with markup already removed.
type Notification struct {
	ID         string
	Type       string
	Author     string
	Visibility Visibility
	Text       string
	StatusID   string
	Mentions   []string
	CreatedAt  time.Time
}

// Processed reports whether a notification id has already been handled.
// ledger.Ledger satisfies it.
type Processed interface {
	IsProcessed(id string) bool
}

// Reason explains a verdict.
type Reason string

const (
	ReasonEligible      Reason = "eligible"
	ReasonNotMention    Reason = "not_mention"
	ReasonVisibility    Reason = "visibility"
	ReasonIndirect      Reason = "indirect"
	ReasonSelf          Reason = "self"
	ReasonProcessed     Reason = "processed"
	ReasonMissingStatus Reason = "missing_status"
)

// Verdict is the outcome of Filter.Check.
type Verdict struct {
	Eligible bool
	Reason   Reason
}

// Filter classifies notifications. It never mutates the ledger.
type Filter struct {
	// BotAcct is the bot's handle, either "name" or "name@instance".
	BotAcct string
	Ledger  Processed
}

// NewFilter returns a filter for the given bot handle.
func NewFilter(botAcct string, ledger Processed) *Filter {
	return &Filter{BotAcct: botAcct, Ledger: ledger}
}

// Check evaluates n. Processed notifications are reported first so callers
// can ignore them without logging; private and direct notifications are never
// eligible.
func (f *Filter) Check(n Notification) Verdict {
	switch {
	case f.Ledger != nil && f.Ledger.IsProcessed(n.ID):
		return Verdict{Reason: ReasonProcessed}
	case n.Type != TypeMention:
		return Verdict{Reason: ReasonNotMention}
	case n.StatusID == "":
		return Verdict{Reason: ReasonMissingStatus}
	case !PublicAudience(n.Visibility):
		return Verdict{Reason: ReasonVisibility}
	case SameAccount(n.Author, f.BotAcct):
		return Verdict{Reason: ReasonSelf}
	case !f.mentionsBot(n.Mentions):
		return Verdict{Reason: ReasonIndirect}
	}
	return Verdict{Eligible: true, Reason: ReasonEligible}
}

// IsEligible is Check(n).Eligible.
func (f *Filter) IsEligible(n Notification) bool {
	return f.Check(n).Eligible
}

func (f *Filter) mentionsBot(mentions []string) bool {
	for _, acct := range mentions {
		if SameAccount(acct, f.BotAcct) {
			return true
		}
	}
	return false
}

// PublicAudience reports whether v may receive an automated reply.
func PublicAudience(v Visibility) bool {
	return v == VisibilityPublic || v == VisibilityUnlisted
}

// SameAccount compares two handles case-insensitively. A bare username
// matches the same username on any instance, since Mastodon reports local
// accounts without a domain.
func SameAccount(a, b string) bool {
	a = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "@"))
	b = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(b), "@"))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	userA, hostA, fullA := strings.Cut(a, "@")
	userB, hostB, fullB := strings.Cut(b, "@")
	if userA != userB {
		return false
	}
	return !fullA || !fullB || hostA == hostB
}

// Reply is an outgoing answer to a notification.
type Reply struct {
	// InReplyTo is the status the reply threads under.
	InReplyTo  string
	Author     string
	Text       string
	Visibility Visibility
}

// Status returns the post body, addressed to the author.
func (r Reply) Status() string {
	author := strings.TrimPrefix(strings.TrimSpace(r.Author), "@")
	if author == "" {
		return r.Text
	}
	return "@" + author + " " + r.Text
}
