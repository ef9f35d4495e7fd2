// fhz2mqtt bridges FHT80b room thermostats, reached through an ELV FHZ1000
// transceiver, to an MQTT broker.
//
// Commands:
//   - serve: run the bridge (the default deployment)
//   - send: encode one command and write it to the transceiver
//   - monitor: print decoded traffic from the transceiver
//   - replay: decode a frame capture file offline
//   - commands: list the known FHT commands
//   - ports: list serial ports
package main

import (
	"fmt"
	"os"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
