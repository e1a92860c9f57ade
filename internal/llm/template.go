package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTemplate marks a prompt template that cannot be used. It is a
// startup configuration error.
var ErrInvalidTemplate = errors.New("invalid prompt template")

// Placeholders understood by Template.
const (
	FieldCategory = "category"
	FieldContext  = "context"
	FieldQuestion = "question"
)

// DefaultTemplate is the prompt used when no template file is configured.
const DefaultTemplate = `You are an arXiv paper assistant bot on Mastodon.
Answer the user's question based only on recent {category} papers.
Be concise and helpful. Keep response under 4000 characters.

Important: Format paper references as clickable links: https://arxiv.org/abs/ID

Example: Instead of just 2512.21450, write https://arxiv.org/abs/2512.21450

Recent {category} papers:
{context}

User question: {question}

If the question is about the papers above, answer it. If not, politely decline and explain your purpose.`

type segment struct {
	literal string
	field   string
}

// Template is a parsed prompt. Values are substituted in a single pass, so
// placeholder syntax inside a question or context is inserted verbatim.
type Template struct {
	text     string
	segments []segment
}

// ParseTemplate validates text. Recognised placeholders are {category},
// {context} and {question}; "{{" and "}}" produce literal braces. The
// template must reference both {context} and {question}.
func ParseTemplate(text string) (*Template, error) {
	var (
		segments []segment
		literal  strings.Builder
		seen     = map[string]bool{}
	)
	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{literal: literal.String()})
			literal.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch ch {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				literal.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", ErrInvalidTemplate, i)
			}
			name := text[i+1 : i+1+end]
			switch name {
			case FieldCategory, FieldContext, FieldQuestion:
			default:
				return nil, fmt.Errorf("%w: unknown placeholder {%s}", ErrInvalidTemplate, name)
			}
			flush()
			segments = append(segments, segment{field: name})
			seen[name] = true
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				literal.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: unmatched '}' at offset %d", ErrInvalidTemplate, i)
		default:
			literal.WriteByte(ch)
		}
	}
	flush()
	for _, required := range []string{FieldContext, FieldQuestion} {
		if !seen[required] {
			return nil, fmt.Errorf("%w: missing {%s} placeholder", ErrInvalidTemplate, required)
		}
	}
	return &Template{text: text, segments: segments}, nil
}

// MustParseTemplate is ParseTemplate for compile-time constants.
func MustParseTemplate(text string) *Template {
	tmpl, err := ParseTemplate(text)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Text returns the source of the template.
func (t *Template) Text() string {
	return t.text
}

// Assemble produces the final model input.
func (t *Template) Assemble(category, context, question string) string {
	values := map[string]string{
		FieldCategory: category,
		FieldContext:  context,
		FieldQuestion: question,
	}
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.field == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(values[seg.field])
	}
	return b.String()
}
