// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evalrun

import (
	"strings"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Template placeholders replaced by RenderPrompt.
const (
	QuestionPlaceholder = "{question}"
	SourcesPlaceholder  = "{sources}"
)

// RenderPrompt fills a prompt template with the question text and the
// plain-text rendering of its sources. Other braces are left untouched.
func RenderPrompt(template string, q types.Question) string {
	return strings.NewReplacer(
		QuestionPlaceholder, q.Content,
		SourcesPlaceholder, SourcesText(q.Sources),
	).Replace(template)
}

// SourcesText renders sources as their title followed by their pages, one
// per line, with a blank line between sources.
func SourcesText(sources []types.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		pages := make([]string, len(s.Pages))
		for j, p := range s.Pages {
			pages[j] = p.Text
		}
		parts[i] = s.Title + "\n" + strings.Join(pages, "\n")
	}
	return strings.Join(parts, "\n\n")
}

// BuildRequest assembles the request for one question: its sources as
// citable documents followed by the rendered prompt.
func BuildRequest(model string, prompt types.Prompt, q types.Question, sampling types.SamplingConfig) anthropic.Request {
	return anthropic.Request{
		Model:     model,
		Documents: anthropic.DocumentsFromSources(q.Sources),
		Prompt:    RenderPrompt(prompt.Content, q),
		Sampling:  sampling,
	}
}
