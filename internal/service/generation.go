package service

import "sync"

// generations считает сбросы кэша сводки по пользователям. Сводка, собранная
// до очередного сброса, в кэш не записывается.
type generations struct {
	mu     sync.Mutex
	values map[string]uint64
	locks  *keyLock
}

func newGenerations() *generations {
	return &generations{
		values: make(map[string]uint64),
		locks:  newKeyLock(),
	}
}

func (g *generations) current(ownerID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.values[ownerID]
}

// bump увеличивает поколение и под блокировкой пользователя выполняет fn.
func (g *generations) bump(ownerID string, fn func()) {
	unlock := g.locks.Lock(ownerID)
	defer unlock()

	g.mu.Lock()
	g.values[ownerID]++
	g.mu.Unlock()

	fn()
}

// storeIf выполняет fn, только если поколение не менялось с момента since.
// Возвращает false, если запись пропущена.
func (g *generations) storeIf(ownerID string, since uint64, fn func()) bool {
	unlock := g.locks.Lock(ownerID)
	defer unlock()

	if g.current(ownerID) != since {
		return false
	}
	fn()
	return true
}
