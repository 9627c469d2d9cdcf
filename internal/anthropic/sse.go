// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package anthropic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// maxLineBytes bounds a single SSE or NDJSON line.
const maxLineBytes = 4 << 20

// DecodeEvents reads upstream stream events from r and calls fn with each
// normalized event in order. It accepts server-sent events ("event:" and
// "data:" lines separated by blank lines) and newline-delimited JSON (one
// event object per line), so both live streams and recordings decode the
// same way. Decoding stops at the first error returned by fn.
func DecodeEvents(r io.Reader, fn func(types.StreamEvent) error) error {
	norm := newEventNormalizer()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		eventName string
		data      bytes.Buffer
		line      int
	)

	dispatch := func(payload []byte, name string) error {
		var w wireEvent
		if err := json.Unmarshal(payload, &w); err != nil {
			return fmt.Errorf("decoding event at line %d: %w", line, err)
		}
		if w.Type == "" {
			w.Type = name
		}
		ev, ok := norm.normalize(w)
		if !ok {
			return nil
		}
		return fn(ev)
	}

	flush := func() error {
		if data.Len() == 0 {
			eventName = ""
			return nil
		}
		payload := bytes.Clone(data.Bytes())
		name := eventName
		data.Reset()
		eventName = ""
		return dispatch(payload, name)
	}

	for scanner.Scan() {
		line++
		text := bytes.TrimRight(scanner.Bytes(), "\r")

		switch {
		case len(text) == 0:
			if err := flush(); err != nil {
				return err
			}
		case text[0] == ':':
			// SSE comment.
		case text[0] == '{':
			if err := dispatch(text, ""); err != nil {
				return err
			}
		default:
			field, value, _ := bytes.Cut(text, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				eventName = string(value)
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.Write(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return flush()
}

// ReadEvents decodes every event in r into a slice.
func ReadEvents(r io.Reader) ([]types.StreamEvent, error) {
	var events []types.StreamEvent
	err := DecodeEvents(r, func(ev types.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}
