package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <capture-file>",
		Short: "Decode a frame capture file",
		Long: `Decode every frame in a capture file written by "fhz2mqtt monitor --record"
or by the bridge with capture.path set. Received frames are decoded as they
would have been live; sent frames are printed as payload hex.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}

			reader, err := capture.Open(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			summary, err := replay(reader, fht.NewDecoder(fht.DecoderOptions{ReadingTTL: cfg.Bridge.PendingTTL()}), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d frames: %d in, %d out, %d errors\n",
				summary.in+summary.out, summary.in, summary.out, summary.errors)
			return nil
		},
	}
}

// replaySummary counts what replay saw.
type replaySummary struct {
	in     int
	out    int
	errors int
}

// recordSource yields capture records until io.EOF. *capture.Reader
// implements it.
type recordSource interface {
	Next() (capture.Record, error)
}

// replay decodes every record from src. The capture timestamps drive the
// printed times; the decoder's split reading expiry uses wall time, which
// keeps pairs from a capture together.
func replay(src recordSource, decoder *fht.Decoder, out io.Writer) (replaySummary, error) {
	var sum replaySummary
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, err
		}

		if rec.Direction == capture.DirectionOut {
			sum.out++
			fmt.Fprintf(out, "[%s] sent %s\n", rec.Timestamp.Format(timeFormat), rec.Payload())
			continue
		}

		sum.in++
		msg, err := decoder.Decode(rec.Payload())
		if err != nil {
			sum.errors++
			printError(out, rec.Timestamp, err)
			continue
		}
		printMessage(out, rec.Timestamp, msg)
	}
}
