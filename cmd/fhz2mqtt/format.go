package main

import (
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

// timeFormat is used for every printed timestamp.
const timeFormat = "15:04:05.000"

// printMessage writes one decoded message, one line per observation.
func printMessage(w io.Writer, at time.Time, msg fht.Message) {
	ts := at.Format(timeFormat)
	if msg.Pending {
		fmt.Fprintf(w, "[%s] %s %s %s (waiting for high byte)\n", ts, msg.Address, msg.Kind, msg.Function)
		return
	}
	for _, obs := range msg.Observations {
		fmt.Fprintf(w, "[%s] %s %s %s = %s\n", ts, msg.Address, msg.Kind, obs.Name, obs.Value)
	}
}

// printError writes one decode or framing error.
func printError(w io.Writer, at time.Time, err error) {
	fmt.Fprintf(w, "[%s] [ERROR] %v\n", at.Format(timeFormat), err)
}
