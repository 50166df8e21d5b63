package service

import "sync"

// idLocks выстраивает в очередь изменения одной задачи
type idLocks struct {
	mtx   sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	mtx  sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{locks: make(map[string]*idLock)}
}

func (l *idLocks) lock(id string) func() {
	l.mtx.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &idLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mtx.Unlock()

	entry.mtx.Lock()

	return func() {
		entry.mtx.Unlock()

		l.mtx.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mtx.Unlock()
	}
}
