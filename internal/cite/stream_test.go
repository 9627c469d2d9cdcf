// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"errors"
	"strings"
	"testing"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func textDelta(s string) types.StreamEvent {
	return types.StreamEvent{
		Type:  types.EventContentBlockDelta,
		Delta: &types.Delta{Type: types.DeltaText, Text: s},
	}
}

func citationDelta(c types.Citation) types.StreamEvent {
	return types.StreamEvent{
		Type:  types.EventContentBlockDelta,
		Delta: &types.Delta{Type: types.DeltaCitations, Citation: &c},
	}
}

func event(typ types.EventType) types.StreamEvent {
	return types.StreamEvent{Type: typ}
}

func blockStart() types.StreamEvent {
	return types.StreamEvent{
		Type:  types.EventContentBlockStart,
		Block: &types.ContentBlock{Kind: types.BlockText},
	}
}

func applyAll(t *testing.T, f *StreamFormatter, events ...types.StreamEvent) {
	t.Helper()
	for i, ev := range events {
		if err := f.Apply(ev); err != nil {
			t.Fatalf("Apply(event %d, %s): %v", i, ev.Type, err)
		}
	}
}

func TestStreamFormatterEndToEnd(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		blockStart(),
		textDelta("Remote work "),
		textDelta("is allowed."),
		citationDelta(charCitation("Policy", "3 days per week", 0, 22)),
		event(types.EventContentBlockStop),
		event(types.EventMessageStop),
	)

	if f.State() != StateDone {
		t.Fatalf("State() = %s, want done", f.State())
	}
	want := "Remote work is allowed [1].\n\n**References**\n\n[1] Policy: \"3 days per week\""
	if got := f.Rendering(); got != want {
		t.Errorf("Rendering() = %q, want %q", got, want)
	}
}

func TestStreamFormatterStates(t *testing.T) {
	f := NewStreamFormatter()
	steps := []struct {
		ev   types.StreamEvent
		want State
	}{
		{event(types.EventMessageStart), StateAwaitingBlock},
		{event(types.EventMessageStart), StateAwaitingBlock},
		{blockStart(), StateInBlock},
		{textDelta("Hi."), StateInBlock},
		{event(types.EventContentBlockStop), StateBlockComplete},
		{blockStart(), StateInBlock},
		{event(types.EventContentBlockStop), StateBlockComplete},
		{types.StreamEvent{Type: "ping"}, StateBlockComplete},
		{event(types.EventMessageStop), StateDone},
	}
	for i, s := range steps {
		if err := f.Apply(s.ev); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if f.State() != s.want {
			t.Errorf("step %d (%s): State() = %s, want %s", i, s.ev.Type, f.State(), s.want)
		}
	}
}

func TestStreamFormatterRederivesFromRawText(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		blockStart(),
		textDelta("Remote work "),
		citationDelta(charCitation("Policy", "3 days per week", 0, 22)),
	)

	// The offset lies beyond the text received so far and clamps to its end.
	if want := "Remote work  [1]"; f.Rendering() != want {
		t.Errorf("partial Rendering() = %q, want %q", f.Rendering(), want)
	}

	applyAll(t, f, textDelta("is allowed."))

	if want := "Remote work is allowed [1]."; f.Rendering() != want {
		t.Errorf("Rendering() = %q, want %q", f.Rendering(), want)
	}
}

func TestStreamFormatterIdempotentRederive(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		blockStart(),
		textDelta("ABCDE"),
		citationDelta(charCitation("A", "a", 0, 1)),
		citationDelta(charCitation("B", "b", 0, 3)),
	)

	first := f.Rendering()
	f.Rederive()
	second := f.Rendering()
	f.Rederive()
	third := f.Rendering()

	if first != second || second != third {
		t.Errorf("renderings differ: %q, %q, %q", first, second, third)
	}
}

func TestStreamFormatterMatchesBatch(t *testing.T) {
	blocks := []types.ContentBlock{
		{Kind: types.BlockText, Text: "Intro without sources."},
		{
			Kind:      types.BlockText,
			Text:      "Employees may work remotely up to 3 days per week.",
			Citations: []types.Citation{charCitation("Policy", "[Page 1]\nup to 3 days per week", 0, 49)},
		},
		{
			Kind: types.BlockText,
			Text: "Core hours are fixed.",
			Citations: []types.Citation{{
				Kind:          types.LocationPage,
				DocumentTitle: "Handbook",
				CitedText:     "Core hours are 10am-3pm",
				Span:          &types.Span{Start: 2, End: 3},
			}},
		},
	}

	f := NewStreamFormatter()
	applyAll(t, f, event(types.EventMessageStart))
	for _, b := range blocks {
		applyAll(t, f, blockStart())
		for _, chunk := range strings.SplitAfter(b.Text, " ") {
			applyAll(t, f, textDelta(chunk))
		}
		for _, c := range b.Citations {
			applyAll(t, f, citationDelta(c))
		}
		applyAll(t, f, event(types.EventContentBlockStop))
	}
	applyAll(t, f, event(types.EventMessageStop))

	if got, want := f.Rendering(), FormatBatch(blocks).String(); got != want {
		t.Errorf("stream rendering differs from batch:\n got: %q\nwant: %q", got, want)
	}
}

func TestStreamFormatterMultiCitationNumbering(t *testing.T) {
	text := "Alpha beta. Gamma delta."
	first := charCitation("A", "alpha", 0, 10)
	second := charCitation("B", "gamma", 12, 23)

	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		blockStart(),
		citationDelta(first),
		citationDelta(second),
		textDelta(text),
		event(types.EventContentBlockStop),
		event(types.EventMessageStop),
	)

	doc := f.Document()
	if want := "Alpha beta [1]. Gamma delta [2]."; doc.Body != want {
		t.Errorf("stream Body = %q, want %q", doc.Body, want)
	}
	if len(doc.References) != 2 || doc.References[0].Title != "A" || doc.References[1].Title != "B" {
		t.Errorf("stream References = %v, want A then B", doc.References)
	}

	// Batch numbers right to left, so the same block gets the reverse order.
	batch := FormatBatch([]types.ContentBlock{{
		Kind:      types.BlockText,
		Text:      text,
		Citations: []types.Citation{first, second},
	}})
	if want := "Alpha beta [2]. Gamma delta [1]."; batch.Body != want {
		t.Errorf("batch Body = %q, want %q", batch.Body, want)
	}
}

func TestStreamFormatterErrorKeepsPartialOutput(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		blockStart(),
		textDelta("Finished block."),
		event(types.EventContentBlockStop),
		blockStart(),
		textDelta("Half a sen"),
		types.StreamEvent{
			Type: types.EventError,
			Err:  &types.StreamError{Type: "overloaded_error", Message: "Overloaded"},
		},
	)

	if f.State() != StateError {
		t.Fatalf("State() = %s, want error", f.State())
	}
	var se *types.StreamError
	if !errors.As(f.Err(), &se) || se.Type != "overloaded_error" {
		t.Errorf("Err() = %v, want overloaded_error", f.Err())
	}
	if got := f.Rendering(); !strings.HasPrefix(got, "Finished block.") {
		t.Errorf("Rendering() = %q, want finalized block kept", got)
	}
	if strings.Contains(f.Rendering(), "References") {
		t.Errorf("Rendering() after error should not include references: %q", f.Rendering())
	}

	before := f.Rendering()
	err := f.Apply(textDelta("more"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Apply after error = %v, want ErrClosed", err)
	}
	if f.Rendering() != before {
		t.Error("rendering changed after terminal state")
	}
}

func TestStreamFormatterErrorWithoutPayload(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f, event(types.EventError))

	if f.Err() == nil {
		t.Fatal("Err() = nil, want diagnostic")
	}
}

func TestStreamFormatterImplicitBlock(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		textDelta("No start event."),
		citationDelta(types.Citation{Kind: types.LocationPage, DocumentTitle: "Doc", CitedText: "x"}),
	)

	if f.State() != StateInBlock {
		t.Errorf("State() = %s, want in_block", f.State())
	}
	if want := "No start event. [1]"; f.Rendering() != want {
		t.Errorf("Rendering() = %q, want %q", f.Rendering(), want)
	}
}

func TestStreamFormatterSeededBlockAndIgnoredDeltas(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f,
		event(types.EventMessageStart),
		types.StreamEvent{
			Type:  types.EventContentBlockStart,
			Block: &types.ContentBlock{Kind: types.BlockText, Text: "Seeded "},
		},
		types.StreamEvent{Type: types.EventContentBlockDelta, Delta: &types.Delta{Type: "signature_delta"}},
		types.StreamEvent{Type: types.EventContentBlockDelta},
		citationDelta(types.Citation{}),
		textDelta("text."),
		event(types.EventMessageStop),
	)

	want := "Seeded text. [1]\n\n**References**\n\n[1] Source 1"
	if got := f.Rendering(); got != want {
		t.Errorf("Rendering() = %q, want %q", got, want)
	}
}

func TestStreamFormatterAfterDone(t *testing.T) {
	f := NewStreamFormatter()
	applyAll(t, f, event(types.EventMessageStart), event(types.EventMessageStop))

	if err := f.Apply(event(types.EventMessageStart)); !errors.Is(err, ErrClosed) {
		t.Errorf("Apply after done = %v, want ErrClosed", err)
	}
}

func TestFormatEvents(t *testing.T) {
	events := []types.StreamEvent{
		event(types.EventMessageStart),
		blockStart(),
		textDelta("Claim."),
		citationDelta(charCitation("Doc", "excerpt", 0, 5)),
		event(types.EventContentBlockStop),
		event(types.EventMessageStop),
		textDelta("ignored"),
	}

	doc, err := FormatEvents(events)
	if err != nil {
		t.Fatalf("FormatEvents: %v", err)
	}
	if doc.Body != "Claim [1]." {
		t.Errorf("Body = %q, want %q", doc.Body, "Claim [1].")
	}
	if len(doc.References) != 1 {
		t.Errorf("len(References) = %d, want 1", len(doc.References))
	}
}

func TestStateString(t *testing.T) {
	if StateBlockComplete.String() != "block_complete" {
		t.Errorf("String() = %q", StateBlockComplete.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("String() = %q", State(42).String())
	}
}
