// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ReferenceEntry is a deduplicated, numbered citation record.
type ReferenceEntry struct {
	// Number is 1-based and assigned in first-seen order across a response.
	Number int `json:"number" yaml:"number"`

	// Title is the cited document's title.
	Title string `json:"title" yaml:"title"`

	// Text is the cleaned, length-capped excerpt. May be empty.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Page is the page the excerpt came from, or 0 when unknown.
	Page int `json:"page,omitempty" yaml:"page,omitempty"`
}

// String renders the entry as `[N] Title: "text" (Page P)`. The quoted text
// is omitted when empty and the page suffix when unknown.
func (e ReferenceEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", e.Number, e.Title)
	if e.Text != "" {
		fmt.Fprintf(&b, ": \"%s\"", e.Text)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " (Page %d)", e.Page)
	}
	return b.String()
}
