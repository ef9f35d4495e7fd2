package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/serial"
)

func newSendCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "send <house-code> <command> <value>",
		Short: "Send one command to a thermostat",
		Long: `Encode a command for one thermostat and write it to the transceiver.

The house code is four digits, two per byte, each pair 00-99 (e.g. 1234).
Run "fhz2mqtt commands" for the writable command names.

Examples:
  fhz2mqtt send 1234 desired-temp 21.5
  fhz2mqtt send 1234 mode auto --dry-run`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, payload, err := encodeCommand(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "payload: %s\n", payload)
			fmt.Fprintf(out, "frame:   %s\n", hex.EncodeToString(frame))

			if dryRun {
				fmt.Fprintln(out, "dry run, nothing sent")
				return nil
			}

			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging, version)

			port, err := serial.Open(serial.FromConfig(cfg.Serial))
			if err != nil {
				return err
			}
			defer port.Close()

			codec := fhz.NewCodec(port, fhz.CodecOptions{
				SettleDelay: cfg.Serial.SettleDelay(),
				DryRun:      cfg.Serial.DryRun,
				Logger:      log,
			})
			if err := codec.WritePayload(payload); err != nil {
				return fmt.Errorf("sending command: %w", err)
			}
			fmt.Fprintf(out, "sent to %s\n", cfg.Serial.Device)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the frame without opening the port")
	return cmd
}

// encodeCommand builds the payload for a set request and its wire frame.
func encodeCommand(houseCode, command, value string) ([]byte, fhz.Payload, error) {
	addr, err := fht.ParseHouseCode(houseCode)
	if err != nil {
		return nil, fhz.Payload{}, err
	}

	payload, err := fht.NewEncoder(nil).Encode(addr, command, value)
	if err != nil {
		return nil, fhz.Payload{}, err
	}

	frame, err := fhz.MarshalFrame(payload)
	if err != nil {
		return nil, fhz.Payload{}, err
	}
	return frame, payload, nil
}
