package device

import (
	"maps"
	"time"
)

// State maps a command name ("desired-temp", "window", ...) to the last
// display value reported for it.
type State map[string]string

// Thermostat is one FHT80b known to the bridge, either seeded from the
// config file or discovered on the radio link.
type Thermostat struct {
	// HouseCode is the four digit address, e.g. "9601".
	HouseCode string `json:"house_code"`

	// Name is a human label from the devices section of the config. May be empty.
	Name string `json:"name"`

	// FirstSeen and LastSeen are nil until a frame from the thermostat is decoded.
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`

	// LastKind is "ack" or "status" for the most recent observation.
	LastKind string `json:"last_kind,omitempty"`

	State State `json:"state"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Seed is a thermostat declared in configuration.
type Seed struct {
	HouseCode string
	Name      string
}

// DeepCopy returns a copy that shares no mutable state with t.
func (t *Thermostat) DeepCopy() *Thermostat {
	if t == nil {
		return nil
	}

	cpy := *t
	cpy.State = maps.Clone(t.State)
	if cpy.State == nil {
		cpy.State = State{}
	}
	if t.FirstSeen != nil {
		first := *t.FirstSeen
		cpy.FirstSeen = &first
	}
	if t.LastSeen != nil {
		last := *t.LastSeen
		cpy.LastSeen = &last
	}
	return &cpy
}

// observe merges a batch of observations the way the repository does:
// FirstSeen is set once, state keys not in the batch keep their value.
// Times are kept at second precision to match what is stored.
func (t *Thermostat) observe(kind string, state State, at, now time.Time) {
	seen := at.UTC().Truncate(time.Second)
	if t.FirstSeen == nil {
		first := seen
		t.FirstSeen = &first
	}
	t.LastSeen = &seen
	t.LastKind = kind
	if t.State == nil {
		t.State = State{}
	}
	maps.Copy(t.State, state)
	t.UpdatedAt = now.UTC().Truncate(time.Second)
}
