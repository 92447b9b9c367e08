package dedupe

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// DefaultMaxItems bounds the in-memory set, telegram update ids only grow
const DefaultMaxItems = 100_000

// MemoryDedupe keeps update ids in process memory. Works alone on a single
// instance and behind Fallback when redis is down.
type MemoryDedupe struct {
	log      logger.Logger
	ttl      time.Duration
	maxItems int
	now      func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewInMemoryDedupe ttl is how long an id is remembered, janitorEvery how often
// expired ids are swept (0 disables the janitor, expired ids are then only swept when full)
func NewInMemoryDedupe(log logger.Logger, ttl, janitorEvery time.Duration) *MemoryDedupe {
	m := &MemoryDedupe{
		log:      log,
		ttl:      ttl,
		maxItems: DefaultMaxItems,
		now:      time.Now,
		expires:  make(map[string]time.Time, 256),
		stop:     make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *MemoryDedupe) Seen(_ context.Context, id string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if exp, ok := m.expires[id]; ok && exp.After(now) {
		return true, nil
	}

	if len(m.expires) >= m.maxItems {
		m.makeRoom(now)
	}
	m.expires[id] = now.Add(m.ttl)

	return false, nil
}

func (m *MemoryDedupe) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.expires)
}

// makeRoom must be called with mu held. Expired ids go first, then the one closest to expiry.
func (m *MemoryDedupe) makeRoom(now time.Time) {
	if m.sweep(now) > 0 {
		return
	}

	var (
		victim string
		oldest time.Time
	)
	for id, exp := range m.expires {
		if victim == "" || exp.Before(oldest) {
			victim, oldest = id, exp
		}
	}
	delete(m.expires, victim)

	m.log.Warnf("In-memory dedupe is full (%d ids), evicted id=%s", m.maxItems, victim)
}

func (m *MemoryDedupe) sweep(now time.Time) int {
	removed := 0
	for id, exp := range m.expires {
		if !exp.After(now) {
			delete(m.expires, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryDedupe) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.mu.Lock()
			n := m.sweep(m.now())
			m.mu.Unlock()

			if n > 0 {
				m.log.Debugf("Dedupe janitor dropped %d expired ids", n)
			}
		}
	}
}

// Close stops the janitor, safe to call twice
func (m *MemoryDedupe) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}
