// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// blockSeparator joins block contributions in the rendered body.
const blockSeparator = "\n\n"

// FormattedDocument is the result of formatting one response.
type FormattedDocument struct {
	// Body is the response text with inline citation markers.
	Body string `json:"body" yaml:"body"`

	// References are the deduplicated entries, ascending by number.
	References []types.ReferenceEntry `json:"references,omitempty" yaml:"references,omitempty"`
}

// ReferencesSection renders References, or returns "" if there are none.
func (d FormattedDocument) ReferencesSection() string {
	return RenderReferences(d.References)
}

// String returns the body followed by the references section, if any.
func (d FormattedDocument) String() string {
	return d.Body + d.ReferencesSection()
}

// FormatBatch formats a complete response. Blocks keep their order; text
// blocks with citations get markers, everything else passes through. A
// fresh ledger numbers the references.
func FormatBatch(blocks []types.ContentBlock) FormattedDocument {
	ledger := NewLedger()
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = renderBlock(b, ledger)
	}
	return FormattedDocument{
		Body:       strings.Join(parts, blockSeparator),
		References: ledger.Entries(),
	}
}

func renderBlock(b types.ContentBlock, ledger *Ledger) string {
	isText := b.Kind == types.BlockText || b.Kind == ""
	if !isText || len(b.Citations) == 0 {
		return b.Text
	}
	return Place(b.Text, b.Citations, ledger)
}
