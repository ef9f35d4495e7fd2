package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("capture: recorder closed")

const filePermissions = 0o640

// Recorder appends frames to a capture stream.
// It is safe for concurrent use: the bridge's reader and writer both record.
type Recorder struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	closed  bool
	now     func() time.Time
	written int
}

// NewRecorder writes records to w. Close does not close w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		enc: encMode.NewEncoder(w),
		now: time.Now,
	}
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Record appends one frame with the current time.
func (r *Recorder) Record(dir Direction, p fhz.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	rec := Record{
		Timestamp: r.now().UTC(),
		Direction: dir,
		Type:      p.Type,
		Data:      p.Data,
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("writing capture record: %w", err)
	}
	r.written++
	return nil
}

// Count returns the number of records written since the recorder was created.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close stops recording and closes the file opened by Create.
// Calling Close more than once is safe.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
