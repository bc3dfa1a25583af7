package services

import "sync"

// KeyedMutex serializes operations per contact so the dispatcher and the
// reply poller never interleave thread updates for the same contact.
type KeyedMutex struct {
	locks sync.Map // contactID -> *sync.Mutex
}

// NewKeyedMutex creates a new KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock acquires the mutex for the given key, creating it on first use.
func (m *KeyedMutex) Lock(key uint) {
	mu, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

// Unlock releases the mutex for the given key.
func (m *KeyedMutex) Unlock(key uint) {
	if mu, ok := m.locks.Load(key); ok {
		mu.(*sync.Mutex).Unlock()
	}
}
