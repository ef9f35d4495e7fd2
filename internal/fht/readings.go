package fht

import (
	"sync"
	"time"
)

// DefaultReadingTTL is how long a low temperature byte waits for its high
// byte. The thermostat sends both halves back to back, so anything older
// belongs to an earlier, incomplete transmission.
const DefaultReadingTTL = 2 * time.Minute

// SplitReadings caches the low byte of measured temperatures per
// thermostat until the matching high byte arrives.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type SplitReadings struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[HouseCode]lowByte
}

type lowByte struct {
	value    byte
	storedAt time.Time
}

// NewSplitReadings creates an empty cache. A non-positive ttl selects
// DefaultReadingTTL.
func NewSplitReadings(ttl time.Duration) *SplitReadings {
	if ttl <= 0 {
		ttl = DefaultReadingTTL
	}
	return &SplitReadings{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[HouseCode]lowByte),
	}
}

// StoreLow remembers the low byte for addr, replacing any earlier one.
func (s *SplitReadings) StoreLow(addr HouseCode, value byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.pending[addr] = lowByte{value: value, storedAt: now}
}

// TakeLow returns and removes the low byte for addr. It reports false when
// none was stored or the stored one has expired.
func (s *SplitReadings) TakeLow(addr HouseCode) (byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[addr]
	if !ok {
		return 0, false
	}
	delete(s.pending, addr)
	if s.now().Sub(entry.storedAt) > s.ttl {
		return 0, false
	}
	return entry.value, true
}

// Prune drops expired entries and returns how many are left.
func (s *SplitReadings) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	return len(s.pending)
}

// Len returns the number of cached low bytes, expired ones included.
func (s *SplitReadings) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *SplitReadings) pruneLocked(now time.Time) {
	for addr, entry := range s.pending {
		if now.Sub(entry.storedAt) > s.ttl {
			delete(s.pending, addr)
		}
	}
}
