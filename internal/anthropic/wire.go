// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anthropic

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// Request-side wire shapes.

type wireRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireInput `json:"content"`
}

// wireInput is a user-side content block: a document or the prompt text.
type wireInput struct {
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	Source    *wireSource      `json:"source,omitempty"`
	Title     string           `json:"title,omitempty"`
	Context   string           `json:"context,omitempty"`
	Citations *wireCiteOptions `json:"citations,omitempty"`
}

type wireSource struct {
	Type      string      `json:"type"`
	MediaType string      `json:"media_type,omitempty"`
	Data      string      `json:"data,omitempty"`
	Content   []wireInput `json:"content,omitempty"`
}

type wireCiteOptions struct {
	Enabled bool `json:"enabled"`
}

// Response-side wire shapes. Location fields are pointers so a missing
// field can be told apart from a zero offset.

type wireResponse struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Model      string      `json:"model"`
	StopReason string      `json:"stop_reason"`
	Content    []wireBlock `json:"content"`
	Usage      Usage       `json:"usage"`
}

type wireBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Citations []wireCitation `json:"citations"`
}

type wireCitation struct {
	Type            string  `json:"type"`
	CitedText       string  `json:"cited_text"`
	DocumentIndex   int     `json:"document_index"`
	DocumentTitle   *string `json:"document_title"`
	StartCharIndex  *int    `json:"start_char_index"`
	EndCharIndex    *int    `json:"end_char_index"`
	StartPageNumber *int    `json:"start_page_number"`
	EndPageNumber   *int    `json:"end_page_number"`
	StartBlockIndex *int    `json:"start_block_index"`
	EndBlockIndex   *int    `json:"end_block_index"`
}

type wireEvent struct {
	Type         string     `json:"type"`
	Index        int        `json:"index"`
	ContentBlock *wireBlock `json:"content_block"`
	Delta        *wireDelta `json:"delta"`
	Error        *wireError `json:"error"`
}

type wireDelta struct {
	Type     string        `json:"type"`
	Text     string        `json:"text"`
	Citation *wireCitation `json:"citation"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wireErrorBody is the JSON body of a non-2xx response.
type wireErrorBody struct {
	Type  string    `json:"type"`
	Error wireError `json:"error"`
}

// Usage reports token consumption for one response.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// Response is a complete, normalized Messages API response.
type Response struct {
	ID         string               `json:"id" yaml:"id"`
	Model      string               `json:"model" yaml:"model"`
	StopReason string               `json:"stop_reason" yaml:"stop_reason"`
	Blocks     []types.ContentBlock `json:"blocks" yaml:"blocks"`
	Usage      Usage                `json:"usage" yaml:"usage"`
}

// DecodeMessage reads one Messages API response body and normalizes it.
func DecodeMessage(r io.Reader) (*Response, error) {
	var w wireResponse
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	if w.Type == "error" {
		return nil, fmt.Errorf("decoding message: response is an error object")
	}
	return normalizeResponse(w), nil
}

func normalizeResponse(w wireResponse) *Response {
	resp := &Response{
		ID:         w.ID,
		Model:      w.Model,
		StopReason: w.StopReason,
		Usage:      w.Usage,
	}
	for _, b := range w.Content {
		if block, ok := normalizeBlock(b); ok {
			resp.Blocks = append(resp.Blocks, block)
		}
	}
	return resp
}

// normalizeBlock maps an upstream block onto a ContentBlock. Blocks other
// than text and document (thinking, tool_use, ...) are dropped.
func normalizeBlock(w wireBlock) (types.ContentBlock, bool) {
	var kind types.BlockKind
	switch w.Type {
	case "text", "":
		kind = types.BlockText
	case "document":
		kind = types.BlockDocument
	default:
		return types.ContentBlock{}, false
	}
	block := types.ContentBlock{Kind: kind, Text: w.Text}
	for _, c := range w.Citations {
		block.Citations = append(block.Citations, normalizeCitation(c))
	}
	return block, true
}

// normalizeCitation maps an upstream citation onto the closed Citation
// variants. The span is taken from the fields matching the location type
// and left nil when the end of the range is missing.
func normalizeCitation(w wireCitation) types.Citation {
	c := types.Citation{
		Kind:          types.ParseLocationKind(w.Type),
		DocumentIndex: w.DocumentIndex,
		CitedText:     w.CitedText,
	}
	if w.DocumentTitle != nil {
		c.DocumentTitle = *w.DocumentTitle
	}

	switch c.Kind {
	case types.LocationCharOffset:
		c.Span = span(w.StartCharIndex, w.EndCharIndex)
	case types.LocationPage:
		c.Span = span(w.StartPageNumber, w.EndPageNumber)
	case types.LocationContentBlock:
		c.Span = span(w.StartBlockIndex, w.EndBlockIndex)
	}
	return c.Normalize()
}

func span(start, end *int) *types.Span {
	if end == nil {
		return nil
	}
	s := &types.Span{End: *end}
	if start != nil {
		s.Start = *start
	}
	return s
}

// eventNormalizer maps upstream stream events onto StreamEvents. It
// remembers the indices of dropped blocks so their deltas and stop events
// are dropped too.
type eventNormalizer struct {
	skipped map[int]bool
}

func newEventNormalizer() *eventNormalizer {
	return &eventNormalizer{skipped: make(map[int]bool)}
}

// normalize returns the event and whether it should be delivered.
func (n *eventNormalizer) normalize(w wireEvent) (types.StreamEvent, bool) {
	ev := types.StreamEvent{Type: types.EventType(w.Type), Index: w.Index}

	switch ev.Type {
	case types.EventContentBlockStart:
		if w.ContentBlock == nil {
			return ev, true
		}
		block, ok := normalizeBlock(*w.ContentBlock)
		if !ok {
			n.skipped[w.Index] = true
			return ev, false
		}
		ev.Block = &block
	case types.EventContentBlockDelta:
		if n.skipped[w.Index] || w.Delta == nil {
			return ev, false
		}
		d := &types.Delta{Type: types.DeltaType(w.Delta.Type), Text: w.Delta.Text}
		if w.Delta.Citation != nil {
			c := normalizeCitation(*w.Delta.Citation)
			d.Citation = &c
		}
		ev.Delta = d
	case types.EventContentBlockStop:
		if n.skipped[w.Index] {
			return ev, false
		}
	case types.EventError:
		if w.Error != nil {
			ev.Err = &types.StreamError{Type: w.Error.Type, Message: w.Error.Message}
		}
	}
	return ev, true
}
