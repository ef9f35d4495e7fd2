package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrNotConnected is returned by Set while the transceiver port is closed.
	ErrNotConnected = errors.New("bridge: transceiver not connected")

	// ErrInvalidSetTopic is returned for a set request on a topic that does
	// not match <namespace>/set/fht/<house code>/<command>.
	ErrInvalidSetTopic = errors.New("bridge: invalid set topic")
)
