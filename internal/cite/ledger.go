// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cite turns model responses that carry citations into markdown with
// inline reference markers and a numbered references section. It formats
// complete responses (FormatBatch) and streamed ones (StreamFormatter) with
// the same placement routine.
package cite

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/citation-engine/pkg/types"
)

const (
	// quoteDelimiter is the control character the upstream format uses to
	// mark quote boundaries inside cited text.
	quoteDelimiter = "\u0002"

	// maxExcerptRunes caps the stored excerpt, ellipsis included.
	maxExcerptRunes = 150
	ellipsis        = "..."

	referencesHeader = "\n\n**References**\n\n"
	entrySeparator   = "\n\n"
)

// pageMarkerRe matches a leading page marker like "[Page 3]".
var pageMarkerRe = regexp.MustCompile(`^\[Page (\d+)\]`)

type refKey struct {
	title string
	text  string
}

// Ledger assigns stable reference numbers to (title, excerpt) pairs. A
// ledger belongs to exactly one response; it is not safe for concurrent use.
type Ledger struct {
	entries []types.ReferenceEntry
	index   map[refKey]int
}

// NewLedger returns an empty ledger. Numbering starts at 1.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[refKey]int)}
}

// Record returns the entry for (title, citedText), creating it with the next
// number if the pair has not been seen. A positive page takes precedence over
// a page marker embedded in the cited text.
func (l *Ledger) Record(title, citedText string, page int) types.ReferenceEntry {
	text, markerPage := identityText(citedText)
	key := refKey{title: title, text: text}
	if i, ok := l.index[key]; ok {
		return l.entries[i]
	}

	if page <= 0 {
		page = markerPage
	}
	entry := types.ReferenceEntry{
		Number: len(l.entries) + 1,
		Title:  title,
		Text:   cleanExcerpt(text),
		Page:   page,
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, entry)
	return entry
}

// Len returns the number of distinct references recorded.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded entries in ascending number order.
func (l *Ledger) Entries() []types.ReferenceEntry {
	out := make([]types.ReferenceEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Render returns one formatted line per entry, ascending by number.
func (l *Ledger) Render() []string {
	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.String()
	}
	return lines
}

// Section returns the markdown references section, or "" when nothing was recorded.
func (l *Ledger) Section() string {
	return RenderReferences(l.entries)
}

// RenderReferences renders entries under a bold References header, one entry
// per paragraph. It returns "" for no entries.
func RenderReferences(entries []types.ReferenceEntry) string {
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return referencesHeader + strings.Join(lines, entrySeparator)
}

// identityText strips quote delimiters and a leading page marker from raw
// cited text. It returns the remaining text and the marker's page number
// (0 if there is no marker). The result is the excerpt's identity: it is not
// whitespace-collapsed or truncated.
func identityText(raw string) (string, int) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, quoteDelimiter, ""))
	m := pageMarkerRe.FindStringSubmatch(s)
	if m == nil {
		return s, 0
	}
	page, err := strconv.Atoi(m[1])
	if err != nil || page <= 0 {
		page = 0
	}
	// Dropping the marker and the whitespace after it removes the marker
	// line when the marker stands on a line of its own.
	return strings.TrimSpace(s[len(m[0]):]), page
}

// cleanExcerpt removes control characters, collapses whitespace runs and
// caps the result at maxExcerptRunes.
func cleanExcerpt(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, maxExcerptRunes)
}

// truncateRunes shortens s to max code points, replacing the tail with an ellipsis.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}
