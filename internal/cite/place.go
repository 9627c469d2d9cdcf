// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// placement pairs a citation with the byte offset its marker is spliced at.
type placement struct {
	citation types.Citation
	offset   int
}

// Place inserts a " [N]" marker for every citation into text and returns the
// marked-up string. Numbers come from ledger. Citations are spliced from the
// end of the text backward so an insertion never moves an offset that is
// still to be used. Text without citations is returned unchanged.
func Place(text string, citations []types.Citation, ledger *Ledger) string {
	if len(citations) == 0 {
		return text
	}

	placements := make([]placement, len(citations))
	for i, c := range citations {
		c = c.Normalize()
		placements[i] = placement{citation: c, offset: insertionOffset(text, c)}
	}
	// Stable: tied offsets keep arrival order, so the first arrival is
	// spliced first and ends up rightmost.
	sort.SliceStable(placements, func(i, j int) bool {
		return placements[i].offset > placements[j].offset
	})

	out := text
	for _, p := range placements {
		entry := ledger.Record(p.citation.DocumentTitle, p.citation.CitedText, p.citation.PageNumber())
		out = out[:p.offset] + marker(entry.Number) + out[p.offset:]
	}
	return out
}

func marker(n int) string {
	return fmt.Sprintf(" [%d]", n)
}

// insertionOffset computes the byte offset in text after which the
// citation's marker goes. Anything that cannot be resolved falls back to the
// end of the text.
func insertionOffset(text string, c types.Citation) int {
	switch c.Kind {
	case types.LocationCharOffset:
		if c.Span == nil {
			return len(text)
		}
		return byteOffset(text, c.Span.End)
	case types.LocationContentBlock:
		quoted, _ := identityText(c.CitedText)
		if quoted == "" {
			return len(text)
		}
		if i := strings.Index(text, quoted); i >= 0 {
			return i + len(quoted)
		}
		return len(text)
	default:
		// Page locations and unknown schemes defer to the end of the block.
		return len(text)
	}
}

// byteOffset converts a code point offset into a byte offset in s, clamped
// to [0, len(s)].
func byteOffset(s string, runeIndex int) int {
	if runeIndex <= 0 {
		return 0
	}
	n := 0
	for i := range s {
		if n == runeIndex {
			return i
		}
		n++
	}
	return len(s)
}
