package service

import "sync"

// chainLocks hands out one mutex per chain id. Entries are dropped once no
// caller holds or waits on them.
type chainLocks struct {
	mu    sync.Mutex
	locks map[uint]*chainLock
}

type chainLock struct {
	mu   sync.Mutex
	refs int
}

func newChainLocks() *chainLocks {
	return &chainLocks{locks: make(map[uint]*chainLock)}
}

// lock blocks until the chain is free and returns its unlock func.
func (l *chainLocks) lock(chainID uint) func() {
	l.mu.Lock()
	entry, ok := l.locks[chainID]
	if !ok {
		entry = &chainLock{}
		l.locks[chainID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, chainID)
		}
		l.mu.Unlock()
	}
}

func (l *chainLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
