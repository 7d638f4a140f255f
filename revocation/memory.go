package revocation

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value    string
	deadline time.Time
}

// MemoryStore is an in-process Store for tests and single-node development.
// Expired entries are invisible immediately and reclaimed by a periodic sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	now   func() time.Time
	sweep time.Duration
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSweepInterval sets how often expired entries are purged. Zero disables
// the background sweeper.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.sweep = d
	}
}

// NewMemoryStore returns an empty store. Call Close to stop the sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	o := memoryOptions{now: time.Now, sweep: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}

	s := &MemoryStore{
		entries: make(map[string]memEntry),
		now:     o.now,
		stop:    make(chan struct{}),
	}
	if o.sweep > 0 {
		s.wg.Add(1)
		go s.sweepLoop(o.sweep)
	}
	return s
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = memEntry{value: value, deadline: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key)
	delete(s.entries, key)
	return ok, nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(key)
	return ok, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	if err := validateSet(key, ttl); err != nil {
		return false, err
	}
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveLocked(key)
	if !ok {
		return false, ErrNotFound
	}
	if e.value != old {
		return false, nil
	}
	s.entries[key] = memEntry{value: value, deadline: s.now().Add(ttl)}
	return true, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if now.Before(e.deadline) {
			n++
		}
	}
	return n
}

// Close stops the background sweeper. It is safe to call more than once.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

// liveLocked drops key if it has expired. Callers hold s.mu.
func (s *MemoryStore) liveLocked(key string) (memEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !s.now().Before(e.deadline) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.deadline) {
			delete(s.entries, k)
		}
	}
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
