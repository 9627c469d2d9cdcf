// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// LocationKind identifies how a citation addresses its source document.
type LocationKind string

const (
	LocationCharOffset   LocationKind = "char_location"
	LocationPage         LocationKind = "page_location"
	LocationContentBlock LocationKind = "content_block_location"
	LocationUnknown      LocationKind = "unknown"
)

// ParseLocationKind maps an upstream citation type string to a LocationKind.
// Any value outside the three known schemes maps to LocationUnknown.
func ParseLocationKind(s string) LocationKind {
	switch LocationKind(s) {
	case LocationCharOffset, LocationPage, LocationContentBlock:
		return LocationKind(s)
	default:
		return LocationUnknown
	}
}

// Span is an inclusive-start, exclusive-end range. Its unit depends on the
// citation's LocationKind: code points for char_location, page numbers for
// page_location and content block indices for content_block_location.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Citation points from a span of model output back to a source document.
type Citation struct {
	// Kind selects the addressing scheme used by Span.
	Kind LocationKind `json:"kind" yaml:"kind"`

	// DocumentIndex is the zero-based position of the source document in the request.
	DocumentIndex int `json:"document_index" yaml:"document_index"`

	// DocumentTitle names the source document. See DefaultTitle.
	DocumentTitle string `json:"document_title" yaml:"document_title"`

	// CitedText is the verbatim excerpt from the source. It may start with
	// an embedded page marker such as "[Page 3]".
	CitedText string `json:"cited_text" yaml:"cited_text"`

	// Span is the location payload. Nil when the upstream omitted it.
	Span *Span `json:"span,omitempty" yaml:"span,omitempty"`
}

// DefaultTitle returns the title used for a document that has none.
func DefaultTitle(documentIndex int) string {
	return fmt.Sprintf("Source %d", documentIndex+1)
}

// Normalize fills in defaults for missing fields: an empty Kind becomes
// LocationUnknown and an empty title becomes DefaultTitle.
func (c Citation) Normalize() Citation {
	c.Kind = ParseLocationKind(string(c.Kind))
	if c.DocumentTitle == "" {
		c.DocumentTitle = DefaultTitle(c.DocumentIndex)
	}
	return c
}

// PageNumber returns the starting page of a page_location citation, or 0
// when the citation carries no page metadata.
func (c Citation) PageNumber() int {
	if c.Kind != LocationPage || c.Span == nil || c.Span.Start <= 0 {
		return 0
	}
	return c.Span.Start
}

// BlockKind distinguishes content block flavours.
type BlockKind string

const (
	// BlockText is model-generated text that may carry citations.
	BlockText BlockKind = "text"

	// BlockDocument is already-rendered passage text that is passed through verbatim.
	BlockDocument BlockKind = "document"
)

// ContentBlock is one segment of model output.
type ContentBlock struct {
	Kind BlockKind `json:"kind" yaml:"kind"`

	// Text is the raw string as emitted by the model, without markers.
	Text string `json:"text" yaml:"text"`

	// Citations are kept in arrival order.
	Citations []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// EventType enumerates the streaming events the formatter understands.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageStop       EventType = "message_stop"
	EventError             EventType = "error"
)

// DeltaType enumerates the payloads a content_block_delta event can carry.
type DeltaType string

const (
	DeltaText      DeltaType = "text_delta"
	DeltaCitations DeltaType = "citations_delta"
)

// Delta is the payload of a content_block_delta event. Exactly one of Text
// or Citation is meaningful, selected by Type.
type Delta struct {
	Type     DeltaType `json:"type" yaml:"type"`
	Text     string    `json:"text,omitempty" yaml:"text,omitempty"`
	Citation *Citation `json:"citation,omitempty" yaml:"citation,omitempty"`
}

// StreamError is the diagnostic carried by an error event.
type StreamError struct {
	Type    string `json:"type" yaml:"type"`
	Message string `json:"message" yaml:"message"`
}

func (e *StreamError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// StreamEvent is one incremental unit of a streamed response.
type StreamEvent struct {
	Type EventType `json:"type" yaml:"type"`

	// Index is the upstream content block index, where the event has one.
	Index int `json:"index" yaml:"index"`

	// Block seeds the accumulator on content_block_start.
	Block *ContentBlock `json:"block,omitempty" yaml:"block,omitempty"`

	// Delta is set on content_block_delta.
	Delta *Delta `json:"delta,omitempty" yaml:"delta,omitempty"`

	// Err is set on error.
	Err *StreamError `json:"error,omitempty" yaml:"error,omitempty"`
}
