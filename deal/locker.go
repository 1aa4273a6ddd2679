package deal

import "sync"

// Locker serializes status mutations per deal id. The poller, the interaction
// correlator, and the status webhook all write Deal.Status; without a single
// writer per deal a poll tick racing an interaction confirmation produces
// last-write-wins overwrites.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*dealLock
}

type dealLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*dealLock)}
}

// Lock acquires the per-deal mutex and returns the matching unlock function.
// Entries are dropped once the last holder releases, so the table stays
// bounded by the number of deals being written concurrently.
func (l *Locker) Lock(dealID string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[dealID]
	if !ok {
		e = &dealLock{}
		l.locks[dealID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, dealID)
		}
		l.mu.Unlock()
	}
}
