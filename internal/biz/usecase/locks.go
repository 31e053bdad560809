package usecase

import "sync"

// senderLocks serializes requests per sender.
// Entries are reference counted and dropped once no request holds or waits on them.
type senderLocks struct {
	mu    sync.Mutex
	locks map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

func newSenderLocks() *senderLocks {
	return &senderLocks{locks: make(map[string]*senderLock)}
}

// lock blocks until the sender's lock is held and returns its release func
func (l *senderLocks) lock(senderID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[senderID]
	if !ok {
		sl = &senderLock{}
		l.locks[senderID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, senderID)
		}
		l.mu.Unlock()
	}
}

// size returns the number of tracked senders
func (l *senderLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
