// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anthropic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

func TestDecodeEventsSSE(t *testing.T) {
	events, err := ReadEvents(strings.NewReader(policyStream))
	require.NoError(t, err)

	var kinds []types.EventType
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []types.EventType{
		types.EventMessageStart,
		types.EventContentBlockStart,
		"ping",
		types.EventContentBlockDelta,
		types.EventContentBlockDelta,
		types.EventContentBlockDelta,
		types.EventContentBlockStop,
		"message_delta",
		types.EventMessageStop,
	}, kinds)

	cit := events[5].Delta.Citation
	require.NotNil(t, cit)
	assert.Equal(t, types.LocationCharOffset, cit.Kind)
	assert.Equal(t, &types.Span{Start: 0, End: 22}, cit.Span)
}

func TestDecodeEventsNDJSON(t *testing.T) {
	recording := strings.Join([]string{
		`{"type":"message_start"}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"hmm"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Hours are flexible."}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"citations_delta","citation":{"type":"page_location","cited_text":"Flexible hours","document_index":1,"start_page_number":2,"end_page_number":3}}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_stop"}`,
	}, "\n")

	doc, err := formatRecording(t, recording)
	require.NoError(t, err)

	assert.Equal(t, "Hours are flexible. [1]", doc.Body)
	require.Len(t, doc.References, 1)
	assert.Equal(t, `[1] Source 2: "Flexible hours" (Page 2)`, doc.References[0].String())
}

func TestDecodeEventsErrorEvent(t *testing.T) {
	recording := "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
		"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Partial\"}}\n\n" +
		"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"

	doc, err := formatRecording(t, recording)
	require.Error(t, err)
	assert.Equal(t, "overloaded_error: Overloaded", err.Error())
	assert.Equal(t, "Partial", doc.Body)
}

func TestDecodeEventsCommentsAndCRLF(t *testing.T) {
	recording := ": keep-alive\r\nevent: message_stop\r\ndata: {}\r\n\r\n"

	events, err := ReadEvents(strings.NewReader(recording))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventMessageStop, events[0].Type)
}

func TestDecodeEventsMalformed(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("{not json}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestDecodeEventsFlushesTrailingFrame(t *testing.T) {
	events, err := ReadEvents(strings.NewReader("data: {\"type\":\"message_start\"}"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventMessageStart, events[0].Type)
}

func formatRecording(t *testing.T, recording string) (cite.FormattedDocument, error) {
	t.Helper()
	events, err := ReadEvents(strings.NewReader(recording))
	require.NoError(t, err)
	return cite.FormatEvents(events)
}
