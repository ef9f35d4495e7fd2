package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fhz2mqtt/internal/capture"
	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/serial"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print decoded traffic from the transceiver",
		Long: `Continuously read frames from the transceiver and print each decoded
thermostat value as it arrives. Framing and decode errors are printed and
reading continues.

With --record every received frame is also appended to a CBOR capture file
that "fhz2mqtt replay" can decode later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}

			port, err := serial.Open(serial.FromConfig(cfg.Serial))
			if err != nil {
				return err
			}

			var recorder *capture.Recorder
			if recordPath != "" {
				recorder, err = capture.Create(recordPath)
				if err != nil {
					port.Close() //nolint:errcheck // Best effort cleanup on error path
					return err
				}
				defer recorder.Close()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fhz2mqtt monitor\n")
			fmt.Fprintf(out, "Device: %s\n", cfg.Serial.Device)
			fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

			return monitor(ctx, port, cfg, recorder, logging.New(cfg.Logging, version), out)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "Append received frames to this capture file")
	return cmd
}

// monitor reads and prints frames until ctx is cancelled or the transport
// fails. It owns port and closes it on return; closing is also what wakes
// a blocked read on cancellation.
//
// Parameters:
//   - ctx: Cancelled to stop
//   - port: Open transceiver port
//   - cfg: Configuration for settle delay and reading TTL
//   - recorder: Optional capture (may be nil)
//   - log: Logger for frame tracing
//   - out: Destination of the printed messages
//
// Returns:
//   - error: nil on cancellation, or the transport error
func monitor(ctx context.Context, port io.ReadWriteCloser, cfg *config.Config, recorder *capture.Recorder, log *logging.Logger, out io.Writer) error {
	stop := context.AfterFunc(ctx, func() {
		port.Close() //nolint:errcheck // Unblocks the reader
	})
	defer func() {
		if stop() {
			port.Close() //nolint:errcheck // Not yet closed by cancellation
		}
	}()

	codec := fhz.NewCodec(port, fhz.CodecOptions{
		SettleDelay: cfg.Serial.SettleDelay(),
		Logger:      log,
	})
	decoder := fht.NewDecoder(fht.DecoderOptions{ReadingTTL: cfg.Bridge.PendingTTL()})

	for {
		payload, err := codec.ReadPayload()
		now := time.Now()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, fhz.ErrIO) {
				return err
			}
			printError(out, now, err)
			continue
		}

		if recorder != nil {
			if recErr := recorder.Record(capture.DirectionIn, payload); recErr != nil {
				log.Warn("capture failed", "error", recErr)
			}
		}

		msg, err := decoder.Decode(payload)
		if err != nil {
			printError(out, now, err)
			continue
		}
		printMessage(out, now, msg)
	}
}
