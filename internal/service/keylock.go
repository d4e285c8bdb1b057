package service

import "sync"

// keyLock сериализует операции по ключу (идентификатору проекта).
// Записи удаляются, когда их больше никто не держит.
type keyLock struct {
	mu      sync.Mutex
	entries map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[string]*keyLockEntry)}
}

// Lock захватывает блокировку ключа и возвращает функцию освобождения.
func (l *keyLock) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyLockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
