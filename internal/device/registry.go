package device

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/fht"
)

// Logger is the logging surface the Registry needs. *logging.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

// Registry is the thermostat inventory: a Repository fronted by a
// write-through cache keyed by house code.
//
// Reads are served from the cache. Writes go to the repository first and
// are mirrored into the cache only once stored, so a failed write leaves
// the cache untouched. Safe for concurrent use.
type Registry struct {
	repo   Repository
	logger Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]*Thermostat
}

// NewRegistry returns an empty registry over repo. Call RefreshCache to
// load what is already stored.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: discardLogger{},
		now:    time.Now,
		cache:  make(map[string]*Thermostat),
	}
}

// SetLogger replaces the discarding default logger.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache replaces the cache with the repository contents.
func (r *Registry) RefreshCache(ctx context.Context) error {
	stored, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading thermostats: %w", err)
	}

	cache := make(map[string]*Thermostat, len(stored))
	for i := range stored {
		cache[stored[i].HouseCode] = stored[i].DeepCopy()
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	r.logger.Info("thermostat cache loaded", "count", len(cache))
	return nil
}

// SeedDevices stores the thermostats named in configuration. A stored
// thermostat only takes the configured name when it has none yet.
func (r *Registry) SeedDevices(ctx context.Context, seeds []Seed) error {
	for _, seed := range seeds {
		if err := r.repo.Upsert(ctx, seed); err != nil {
			return fmt.Errorf("seeding %s: %w", seed.HouseCode, err)
		}
		if err := r.load(ctx, seed.HouseCode); err != nil {
			return err
		}
	}
	if len(seeds) > 0 {
		r.logger.Info("thermostats seeded", "count", len(seeds))
	}
	return nil
}

// GetThermostat returns a copy of the thermostat with houseCode, falling
// back to the repository on a cache miss.
//
// Returns:
//   - *Thermostat: Copy the caller may modify
//   - error: ErrThermostatNotFound when it was never seeded or heard
func (r *Registry) GetThermostat(ctx context.Context, houseCode string) (*Thermostat, error) {
	if t := r.cached(houseCode); t != nil {
		return t, nil
	}

	t, err := r.repo.Get(ctx, houseCode)
	if err != nil {
		return nil, err
	}
	r.store(t.DeepCopy())
	return t, nil
}

// ListThermostats returns copies of every cached thermostat ordered by
// house code.
func (r *Registry) ListThermostats(_ context.Context) []Thermostat {
	r.mu.RLock()
	out := make([]Thermostat, 0, len(r.cache))
	for _, t := range r.cache {
		out = append(out, *t.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Thermostat) int { return cmp.Compare(a.HouseCode, b.HouseCode) })
	return out
}

// Count returns the number of cached thermostats.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// RecordMessage stores the observations of a decoded message as the
// thermostat's latest state. A message without observations, such as the
// low byte of a split temperature, only moves LastSeen.
func (r *Registry) RecordMessage(ctx context.Context, msg fht.Message, at time.Time) error {
	houseCode := msg.Address.String()
	kind := string(msg.Kind)

	state := make(State, len(msg.Observations))
	for _, obs := range msg.Observations {
		state[obs.Name] = obs.Value
	}

	if err := r.repo.RecordObservations(ctx, houseCode, kind, state, at); err != nil {
		return err
	}

	r.mu.Lock()
	t, known := r.cache[houseCode]
	if known {
		t.observe(kind, state, at, r.now())
	}
	r.mu.Unlock()
	if known {
		return nil
	}

	r.logger.Info("new thermostat heard", "house_code", houseCode)
	return r.load(ctx, houseCode)
}

func (r *Registry) cached(houseCode string) *Thermostat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[houseCode].DeepCopy()
}

func (r *Registry) store(t *Thermostat) {
	r.mu.Lock()
	r.cache[t.HouseCode] = t
	r.mu.Unlock()
}

// load reads one thermostat from the repository into the cache.
func (r *Registry) load(ctx context.Context, houseCode string) error {
	t, err := r.repo.Get(ctx, houseCode)
	if err != nil {
		return fmt.Errorf("loading %s: %w", houseCode, err)
	}
	r.store(t)
	return nil
}
