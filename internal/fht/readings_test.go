package fht

import (
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestReadings(ttl time.Duration) (*SplitReadings, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
	r := NewSplitReadings(ttl)
	r.now = clock.Now
	return r, clock
}

func TestSplitReadings_StoreAndTake(t *testing.T) {
	r, _ := newTestReadings(time.Minute)
	hc := HouseCode{Upper: 96, Lower: 1}

	r.StoreLow(hc, 200)

	got, ok := r.TakeLow(hc)
	if !ok || got != 200 {
		t.Fatalf("TakeLow() = %d, %v; want 200, true", got, ok)
	}
	if _, ok := r.TakeLow(hc); ok {
		t.Error("TakeLow() returned the same byte twice")
	}
}

func TestSplitReadings_KeyedByHouseCode(t *testing.T) {
	r, _ := newTestReadings(time.Minute)
	a := HouseCode{Upper: 96, Lower: 1}
	b := HouseCode{Upper: 12, Lower: 34}

	r.StoreLow(a, 10)
	r.StoreLow(b, 20)

	if got, ok := r.TakeLow(b); !ok || got != 20 {
		t.Errorf("TakeLow(b) = %d, %v; want 20, true", got, ok)
	}
	if got, ok := r.TakeLow(a); !ok || got != 10 {
		t.Errorf("TakeLow(a) = %d, %v; want 10, true", got, ok)
	}
}

func TestSplitReadings_LaterLowReplacesEarlier(t *testing.T) {
	r, _ := newTestReadings(time.Minute)
	hc := HouseCode{Upper: 1, Lower: 1}

	r.StoreLow(hc, 1)
	r.StoreLow(hc, 2)

	if got, _ := r.TakeLow(hc); got != 2 {
		t.Errorf("TakeLow() = %d, want 2", got)
	}
}

func TestSplitReadings_Expiry(t *testing.T) {
	r, clock := newTestReadings(time.Minute)
	hc := HouseCode{Upper: 96, Lower: 1}

	r.StoreLow(hc, 200)
	clock.Advance(61 * time.Second)

	if _, ok := r.TakeLow(hc); ok {
		t.Error("TakeLow() returned an expired byte")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after TakeLow, want 0", r.Len())
	}
}

func TestSplitReadings_Prune(t *testing.T) {
	r, clock := newTestReadings(time.Minute)

	r.StoreLow(HouseCode{Upper: 1, Lower: 1}, 1)
	clock.Advance(45 * time.Second)
	r.StoreLow(HouseCode{Upper: 2, Lower: 2}, 2)
	clock.Advance(30 * time.Second)

	if left := r.Prune(); left != 1 {
		t.Errorf("Prune() left %d entries, want 1", left)
	}
	if _, ok := r.TakeLow(HouseCode{Upper: 2, Lower: 2}); !ok {
		t.Error("fresh entry was pruned")
	}
}

func TestNewSplitReadings_DefaultTTL(t *testing.T) {
	r := NewSplitReadings(0)
	if r.ttl != DefaultReadingTTL {
		t.Errorf("ttl = %v, want %v", r.ttl, DefaultReadingTTL)
	}
}
