package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultTemplateParses(t *testing.T) {
	tmpl := MustParseTemplate(DefaultTemplate)
	got := tmpl.Assemble("cs.LG", "[1] Paper", "any diffusion papers?")
	for _, want := range []string{"recent cs.LG papers", "Recent cs.LG papers:\n[1] Paper", "User question: any diffusion papers?"} {
		if !strings.Contains(got, want) {
			t.Fatalf("assembled prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "{") {
		t.Fatalf("unexpected placeholder left in prompt:\n%s", got)
	}
}

func TestParseTemplateRejectsInvalidTemplates(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown placeholder", "{context} {question} {author}"},
		{"missing question", "Context: {context}"},
		{"missing context", "Q: {question}"},
		{"unclosed", "{context} {question"},
		{"stray close", "{context} } {question}"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseTemplate(tt.text)
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("expected ErrInvalidTemplate, got %v", err)
			}
		})
	}
}

func TestAssembleSubstitutesOnce(t *testing.T) {
	tmpl, err := ParseTemplate("C={context}|Q={question}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := tmpl.Assemble("cs.AI", "ctx {question}", "what about {context} and {category}?")
	want := "C=ctx {question}|Q=what about {context} and {category}?"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestAssembleHandlesEscapedBraces(t *testing.T) {
	tmpl, err := ParseTemplate(`Reply as JSON {{"answer": ...}} using {context} for {question}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := tmpl.Assemble("", "C", "Q")
	want := `Reply as JSON {"answer": ...} using C for Q`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
