package common

import (
	"cmp"
	"slices"
	"sync"
)

// KeyedMutex: набор мьютексов по ключу (аккаунт, сделка).
// Записи удаляются, когда их больше никто не держит, поэтому карта не растёт бесконечно.
type KeyedMutex[K cmp.Ordered] struct {
	mu    sync.Mutex
	locks map[K]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex создаёт пустой набор блокировок.
func NewKeyedMutex[K cmp.Ordered]() *KeyedMutex[K] {
	return &KeyedMutex[K]{locks: make(map[K]*refLock)}
}

// Lock захватывает блокировку ключа и возвращает функцию освобождения.
func (k *KeyedMutex[K]) Lock(key K) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// LockMany захватывает блокировки нескольких ключей в возрастающем порядке.
// Повторяющиеся ключи захватываются один раз. Единый порядок исключает взаимную блокировку.
func (k *KeyedMutex[K]) LockMany(keys ...K) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, key := range sorted {
		unlocks = append(unlocks, k.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len возвращает число ключей, которые сейчас кем-то удерживаются.
func (k *KeyedMutex[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
