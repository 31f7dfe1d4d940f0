package engine

import "sync"

// threadLocks serializes turns per thread. Entries are refcounted so the map
// never grows with dead threads.
type threadLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the thread's lock is held and returns the release.
func (l *threadLocks) acquire(threadID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[threadID]
	if !ok {
		entry = &lockEntry{}
		l.entries[threadID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, threadID)
		}
		l.mu.Unlock()
	}
}
