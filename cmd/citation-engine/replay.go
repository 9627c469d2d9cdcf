// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/anthropic"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay [events-file]",
	Short: "Replay a recorded stream through the streaming formatter",
	Long: `Replay reads a recorded streaming response, either Server-Sent Events or
one JSON event per line, and feeds it to the streaming formatter exactly
as a live stream would be. The final rendering is printed at the end.

With --live every intermediate rendering is printed after the event that
produced it, which shows how markers settle as citations arrive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	live, _ := cmd.Flags().GetBool("live")
	output, _ := cmd.Flags().GetString("output")

	r, closeFn, err := openInput(args)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	f := cite.NewStreamFormatter()
	if err := anthropic.DecodeEvents(r, renderEvents(f, out, live)); err != nil {
		return err
	}
	return finishStream(f, out, output)
}

// renderEvents returns a stream callback that applies each event to f.
// Events after the stream finished are ignored. In live mode it prints the rendering whenever an event changes it.
func renderEvents(f *cite.StreamFormatter, w io.Writer, live bool) func(types.StreamEvent) error {
	var n int
	last := ""
	return func(ev types.StreamEvent) error {
		n++
		if err := f.Apply(ev); err != nil {
			if errors.Is(err, cite.ErrClosed) {
				return nil
			}
			return err
		}
		if !live {
			return nil
		}
		rendering := f.Rendering()
		if rendering == last {
			return nil
		}
		last = rendering
		fmt.Fprintf(w, "--- event %d: %s (%s) ---\n%s\n", n, ev.Type, f.State(), rendering)
		return nil
	}
}

// finishStream prints the final document. References are only printed for
// a stream that reached message_stop; partial output is printed before an
// upstream error is returned.
func finishStream(f *cite.StreamFormatter, w io.Writer, output string) error {
	doc := f.Document()
	if f.State() != cite.StateDone {
		doc.References = nil
	}
	if err := writeDocument(w, doc, output); err != nil {
		return err
	}
	switch f.State() {
	case cite.StateError:
		return fmt.Errorf("stream failed: %w", f.Err())
	case cite.StateDone:
		return nil
	default:
		fmt.Fprintf(os.Stderr, "warning: stream ended in state %s without message_stop\n", f.State())
		return nil
	}
}

func init() {
	replayCmd.Flags().Bool("live", false, "print every intermediate rendering")
	replayCmd.Flags().StringP("output", "o", "text", "final output format: text, json, or yaml")

	rootCmd.AddCommand(replayCmd)
}
