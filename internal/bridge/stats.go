package bridge

import (
	"errors"
	"sync/atomic"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// Statistics is a point-in-time snapshot of bridge counters.
type Statistics struct {
	FramesReceived  uint64       `json:"frames_received"`
	FramesSent      uint64       `json:"frames_sent"`
	Published       uint64       `json:"published"`
	PublishFailures uint64       `json:"publish_failures"`
	DecodeErrors    DecodeErrors `json:"decode_errors"`
	PendingReadings int          `json:"pending_readings"`
	SetFailures     uint64       `json:"set_failures"`
	Reconnects      uint64       `json:"reconnects"`
}

// DecodeErrors counts rejected input by cause.
type DecodeErrors struct {
	BadMagic           uint64 `json:"bad_magic"`
	ShortRead          uint64 `json:"short_read"`
	Checksum           uint64 `json:"checksum"`
	Unrecognized       uint64 `json:"unrecognized"`
	UnknownCommand     uint64 `json:"unknown_command"`
	UnsupportedVariant uint64 `json:"unsupported_variant"`
	Unpaired           uint64 `json:"unpaired"`
}

// Total returns the sum of all counters.
func (d DecodeErrors) Total() uint64 {
	return d.BadMagic + d.ShortRead + d.Checksum + d.Unrecognized +
		d.UnknownCommand + d.UnsupportedVariant + d.Unpaired
}

// counters holds the live values behind Statistics.
type counters struct {
	framesReceived  atomic.Uint64
	framesSent      atomic.Uint64
	published       atomic.Uint64
	publishFailures atomic.Uint64
	setFailures     atomic.Uint64
	reconnects      atomic.Uint64

	badMagic           atomic.Uint64
	shortRead          atomic.Uint64
	checksum           atomic.Uint64
	unrecognized       atomic.Uint64
	unknownCommand     atomic.Uint64
	unsupportedVariant atomic.Uint64
	unpaired           atomic.Uint64
}

// countDecodeError bumps the counter matching err. It reports false for
// errors that are not frame or message errors.
func (c *counters) countDecodeError(err error) bool {
	switch {
	case errors.Is(err, fhz.ErrBadMagic):
		c.badMagic.Add(1)
	case errors.Is(err, fhz.ErrShortRead):
		c.shortRead.Add(1)
	case errors.Is(err, fhz.ErrChecksumMismatch):
		c.checksum.Add(1)
	case errors.Is(err, fht.ErrUnrecognizedFrame):
		c.unrecognized.Add(1)
	case errors.Is(err, fht.ErrUnknownCommand):
		c.unknownCommand.Add(1)
	case errors.Is(err, fht.ErrUnsupportedVariant):
		c.unsupportedVariant.Add(1)
	case errors.Is(err, fht.ErrUnpairedReading):
		c.unpaired.Add(1)
	default:
		return false
	}
	return true
}

func (c *counters) snapshot() Statistics {
	return Statistics{
		FramesReceived:  c.framesReceived.Load(),
		FramesSent:      c.framesSent.Load(),
		Published:       c.published.Load(),
		PublishFailures: c.publishFailures.Load(),
		SetFailures:     c.setFailures.Load(),
		Reconnects:      c.reconnects.Load(),
		DecodeErrors: DecodeErrors{
			BadMagic:           c.badMagic.Load(),
			ShortRead:          c.shortRead.Load(),
			Checksum:           c.checksum.Load(),
			Unrecognized:       c.unrecognized.Load(),
			UnknownCommand:     c.unknownCommand.Load(),
			UnsupportedVariant: c.unsupportedVariant.Load(),
			Unpaired:           c.unpaired.Load(),
		},
	}
}
