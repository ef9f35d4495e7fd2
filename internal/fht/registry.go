package fht

import "fmt"

// FunctionID is the one byte command identifier carried in every FHT
// message.
type FunctionID byte

// Known function ids.
const (
	FuncIsValve        FunctionID = 0x00
	FuncMode           FunctionID = 0x3e
	FuncDesiredTemp    FunctionID = 0x41
	FuncIsTempLow      FunctionID = 0x42
	FuncIsTempHigh     FunctionID = 0x43
	FuncStatus         FunctionID = 0x44
	FuncManuTemp       FunctionID = 0x45
	FuncDayTemp        FunctionID = 0x82
	FuncNightTemp      FunctionID = 0x84
	FuncWindowOpenTemp FunctionID = 0x8a
)

// String returns the id as "0x3e".
func (f FunctionID) String() string {
	return fmt.Sprintf("0x%02x", byte(f))
}

// ValueContext carries what a decoder needs besides the value byte.
type ValueContext struct {
	// Address is the thermostat that sent the message.
	Address HouseCode

	// SubFunction is data[7] of a status message (zero for acks).
	SubFunction byte

	// Status is data[8] of a status message (zero for acks). The valve
	// decoder reads its nibbles.
	Status byte

	// Readings holds low bytes waiting for their high byte. Only the split
	// temperature commands use it.
	Readings *SplitReadings
}

// decodeFunc turns a value byte into display text. It returns errPending
// when the byte was absorbed without producing an observation yet.
type decodeFunc func(raw byte, vc ValueContext) (string, error)

// encodeFunc turns user text into a value byte.
type encodeFunc func(text string) (byte, error)

// Command describes one FHT80b function.
type Command struct {
	ID   FunctionID
	Name string

	decode decodeFunc
	encode encodeFunc
}

// Writable reports whether the command can be sent to a thermostat.
func (c Command) Writable() bool {
	return c.encode != nil
}

// Decode converts a value byte to display text.
func (c Command) Decode(raw byte, vc ValueContext) (string, error) {
	return c.decode(raw, vc)
}

// Encode converts user text to a value byte.
//
// Returns:
//   - byte: Wire value
//   - error: ErrUnknownCommand for read-only commands, otherwise the
//     conversion error (ErrInvalidInput, ErrOutOfRange)
func (c Command) Encode(text string) (byte, error) {
	if c.encode == nil {
		return 0, fmt.Errorf("%w: %s is read-only", ErrUnknownCommand, c.Name)
	}
	return c.encode(text)
}

// Registry is the immutable table of FHT80b commands.
//
// Thread Safety:
//   - Read-only after construction; safe for concurrent use.
type Registry struct {
	commands []Command
	byID     map[FunctionID]Command
	byName   map[string]Command
}

// commandTable lists every command in function id order. The composite
// status message (0x44) is decoded separately and is not part of the table.
func commandTable() []Command {
	return []Command{
		{ID: FuncIsValve, Name: "is-valve", decode: decodeValve},
		{ID: FuncMode, Name: "mode", decode: decodeMode, encode: encodeMode},
		{ID: FuncDesiredTemp, Name: "desired-temp", decode: decodeTemperature, encode: encodeTemperature},
		{ID: FuncIsTempLow, Name: "is-temp-low", decode: decodeTempLow},
		{ID: FuncIsTempHigh, Name: "is-temp-high", decode: decodeTempHigh},
		{ID: FuncManuTemp, Name: "manu-temp", decode: decodeTemperature, encode: encodeTemperature},
		{ID: FuncDayTemp, Name: "day-temp", decode: decodeTemperature, encode: encodeTemperature},
		{ID: FuncNightTemp, Name: "night-temp", decode: decodeTemperature, encode: encodeTemperature},
		{ID: FuncWindowOpenTemp, Name: "window-open-temp", decode: decodeTemperature, encode: encodeTemperature},
	}
}

func newRegistry(commands []Command) *Registry {
	r := &Registry{
		commands: commands,
		byID:     make(map[FunctionID]Command, len(commands)),
		byName:   make(map[string]Command, len(commands)),
	}
	for _, c := range commands {
		r.byID[c.ID] = c
		r.byName[c.Name] = c
	}
	return r
}

var defaultRegistry = newRegistry(commandTable())

// DefaultRegistry returns the shared FHT80b command table.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup finds a command by function id.
func (r *Registry) Lookup(id FunctionID) (Command, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// LookupName finds a command by its exact, case-sensitive name.
func (r *Registry) LookupName(name string) (Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Commands returns the table in function id order.
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}
