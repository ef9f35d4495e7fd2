package fht

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nerrad567/fhz2mqtt/internal/fhz"
)

// recordingWriter captures written payloads.
type recordingWriter struct {
	payloads []fhz.Payload
	err      error
}

func (w *recordingWriter) WritePayload(p fhz.Payload) error {
	if w.err != nil {
		return w.err
	}
	w.payloads = append(w.payloads, p)
	return nil
}

func TestEncoder_Encode(t *testing.T) {
	hc := HouseCode{Upper: 96, Lower: 1}

	tests := []struct {
		name     string
		command  string
		text     string
		wantData []byte
	}{
		{
			name:     "desired temperature",
			command:  "desired-temp",
			text:     "17",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x41, 34},
		},
		{
			name:     "mode holiday",
			command:  "mode",
			text:     "holiday",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x3e, 2},
		},
		{
			name:     "night temperature off",
			command:  "night-temp",
			text:     "off",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x84, 11},
		},
		{
			name:     "window open temperature",
			command:  "window-open-temp",
			text:     "12",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x8a, 24},
		},
		{
			name:     "day temperature on",
			command:  "day-temp",
			text:     "on",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x82, 61},
		},
		{
			name:     "manual temperature",
			command:  "manu-temp",
			text:     "19.5",
			wantData: []byte{0x02, 0x01, 0x83, 96, 1, 0x45, 39},
		},
	}

	enc := NewEncoder(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := enc.Encode(hc, tt.command, tt.text)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if p.Type != TypeFHTCommand {
				t.Errorf("Type = 0x%02x, want 0x04", p.Type)
			}
			if !bytes.Equal(p.Data, tt.wantData) {
				t.Errorf("Data = % x, want % x", p.Data, tt.wantData)
			}
		})
	}
}

func TestEncoder_Encode_Errors(t *testing.T) {
	hc := HouseCode{Upper: 96, Lower: 1}

	tests := []struct {
		name    string
		command string
		text    string
		wantErr error
	}{
		{name: "unknown command", command: "boost", text: "1", wantErr: ErrUnknownCommand},
		{name: "wrong case", command: "Desired-Temp", text: "20", wantErr: ErrUnknownCommand},
		{name: "read-only valve", command: "is-valve", text: "50", wantErr: ErrUnknownCommand},
		{name: "read-only temperature", command: "is-temp-low", text: "1", wantErr: ErrUnknownCommand},
		{name: "status pseudo command", command: "status", text: "1", wantErr: ErrUnknownCommand},
		{name: "temperature too low", command: "desired-temp", text: "5.0", wantErr: ErrOutOfRange},
		{name: "temperature too high", command: "desired-temp", text: "31", wantErr: ErrOutOfRange},
		{name: "temperature garbage", command: "desired-temp", text: "hot", wantErr: ErrInvalidInput},
		{name: "mode garbage", command: "mode", text: "party", wantErr: ErrInvalidInput},
	}

	enc := NewEncoder(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(hc, tt.command, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Encode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncoder_Send(t *testing.T) {
	w := &recordingWriter{}
	enc := NewEncoder(nil)

	if err := enc.Send(w, HouseCode{Upper: 12, Lower: 34}, "mode", "auto"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(w.payloads) != 1 {
		t.Fatalf("wrote %d payloads, want 1", len(w.payloads))
	}
	want := []byte{0x02, 0x01, 0x83, 12, 34, 0x3e, 0}
	if !bytes.Equal(w.payloads[0].Data, want) {
		t.Errorf("Data = % x, want % x", w.payloads[0].Data, want)
	}
}

func TestEncoder_Send_DoesNotWriteOnError(t *testing.T) {
	w := &recordingWriter{}
	err := NewEncoder(nil).Send(w, HouseCode{}, "desired-temp", "40")
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Send() error = %v, want ErrOutOfRange", err)
	}
	if len(w.payloads) != 0 {
		t.Error("Send() wrote a payload for an invalid value")
	}
}

func TestEncoder_Send_WriterError(t *testing.T) {
	w := &recordingWriter{err: fhz.ErrIO}
	err := NewEncoder(nil).Send(w, HouseCode{}, "mode", "auto")
	if !errors.Is(err, fhz.ErrIO) {
		t.Errorf("Send() error = %v, want fhz.ErrIO", err)
	}
}

func TestEncoder_DecoderAgreement(t *testing.T) {
	// A command encoded for a thermostat and echoed back as an ack decodes
	// to the same display value.
	hc := HouseCode{Upper: 96, Lower: 1}
	p, err := NewEncoder(nil).Encode(hc, "desired-temp", "21.5")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	ack := fhz.Payload{Type: 0x09, Data: []byte{0x83, 0x09, 0x83, 0x01, p.Data[3], p.Data[4], p.Data[5], p.Data[6], 0x00}}
	msg, err := NewDecoder(DecoderOptions{}).Decode(ack)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(msg.Observations) != 1 || msg.Observations[0].Value != "21.5" {
		t.Errorf("Observations = %+v, want desired-temp 21.5", msg.Observations)
	}
}
