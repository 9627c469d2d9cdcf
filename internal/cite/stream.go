// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// ErrClosed is returned by Apply for events that arrive after message_stop
// or an error event.
var ErrClosed = errors.New("stream already finished")

// State is the streaming formatter's position in the response lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingBlock
	StateInBlock
	StateBlockComplete
	StateDone
	StateError
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateAwaitingBlock: "awaiting_block",
	StateInBlock:       "in_block",
	StateBlockComplete: "block_complete",
	StateDone:          "done",
	StateError:         "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// accumulator holds the raw state of the open block.
type accumulator struct {
	kind      types.BlockKind
	raw       strings.Builder
	citations []types.Citation
	placed    string
}

// StreamFormatter incrementally formats a streamed response. After each
// event that changes the open block it re-derives that block's text from
// the raw text and citations received so far. One StreamFormatter serves
// one response.
type StreamFormatter struct {
	ledger    *Ledger
	state     State
	finalized []string
	open      *accumulator
	err       *types.StreamError
}

// NewStreamFormatter returns a formatter in StateIdle with a fresh ledger.
func NewStreamFormatter() *StreamFormatter {
	return &StreamFormatter{ledger: NewLedger()}
}

// State returns the current lifecycle state.
func (f *StreamFormatter) State() State {
	return f.state
}

// Err returns the upstream diagnostic once an error event was applied.
func (f *StreamFormatter) Err() error {
	if f.err == nil {
		return nil
	}
	return f.err
}

// Apply consumes one event. It returns ErrClosed once the formatter is in a
// terminal state; every other event is accepted. Unknown event and delta
// types are ignored.
func (f *StreamFormatter) Apply(ev types.StreamEvent) error {
	if f.state.Terminal() {
		return fmt.Errorf("%s event: %w", ev.Type, ErrClosed)
	}

	switch ev.Type {
	case types.EventMessageStart:
		if f.state == StateIdle {
			f.state = StateAwaitingBlock
		}
	case types.EventContentBlockStart:
		f.closeBlock()
		f.openBlock(ev.Block)
	case types.EventContentBlockDelta:
		f.applyDelta(ev.Delta)
	case types.EventContentBlockStop:
		f.closeBlock()
	case types.EventMessageStop:
		f.closeBlock()
		f.state = StateDone
	case types.EventError:
		f.err = ev.Err
		if f.err == nil {
			f.err = &types.StreamError{Type: "error", Message: "upstream reported an error"}
		}
		f.state = StateError
	}
	return nil
}

func (f *StreamFormatter) openBlock(seed *types.ContentBlock) {
	acc := &accumulator{kind: types.BlockText}
	if seed != nil {
		if seed.Kind != "" {
			acc.kind = seed.Kind
		}
		acc.raw.WriteString(seed.Text)
		acc.citations = append(acc.citations, seed.Citations...)
	}
	f.open = acc
	f.state = StateInBlock
	f.Rederive()
}

func (f *StreamFormatter) applyDelta(d *types.Delta) {
	if d == nil {
		return
	}
	switch d.Type {
	case types.DeltaText:
		f.ensureOpen()
		f.open.raw.WriteString(d.Text)
	case types.DeltaCitations:
		if d.Citation == nil {
			return
		}
		f.ensureOpen()
		f.open.citations = append(f.open.citations, *d.Citation)
	default:
		return
	}
	f.Rederive()
}

// ensureOpen opens an implicit block for deltas that arrive outside one.
func (f *StreamFormatter) ensureOpen() {
	if f.open == nil {
		f.openBlock(nil)
	}
}

func (f *StreamFormatter) closeBlock() {
	if f.open == nil {
		return
	}
	f.Rederive()
	f.finalized = append(f.finalized, f.open.placed)
	f.open = nil
	f.state = StateBlockComplete
}

// Rederive recomputes the open block's placed text from its raw text and
// citations. Calling it again without new events yields the same text.
func (f *StreamFormatter) Rederive() {
	if f.open == nil {
		return
	}
	block := types.ContentBlock{
		Kind:      f.open.kind,
		Text:      f.open.raw.String(),
		Citations: f.open.citations,
	}
	f.open.placed = renderBlock(block, f.ledger)
}

// Body returns the finalized blocks followed by the open block's latest
// rendering, joined like FormatBatch joins blocks.
func (f *StreamFormatter) Body() string {
	parts := f.finalized
	if f.open != nil {
		parts = append(parts[:len(parts):len(parts)], f.open.placed)
	}
	return strings.Join(parts, blockSeparator)
}

// Rendering returns the current best-known text: the body, plus the
// references section once the message is done.
func (f *StreamFormatter) Rendering() string {
	if f.state == StateDone {
		return f.Body() + f.ledger.Section()
	}
	return f.Body()
}

// Document returns the current body and references.
func (f *StreamFormatter) Document() FormattedDocument {
	return FormattedDocument{Body: f.Body(), References: f.ledger.Entries()}
}

// FormatEvents drives a new StreamFormatter over events and returns the
// final document. Partial output is returned together with the upstream
// error when the stream ends in an error event.
func FormatEvents(events []types.StreamEvent) (FormattedDocument, error) {
	f := NewStreamFormatter()
	for _, ev := range events {
		if err := f.Apply(ev); err != nil {
			break
		}
	}
	return f.Document(), f.Err()
}
