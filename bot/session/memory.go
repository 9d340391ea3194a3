package session

import "sync"

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]Session),
	}
}

// Get returns the session for a chat if one is in progress.
func (m *memoryStore) Get(chatID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

// Put replaces the session for a chat.
func (m *memoryStore) Put(chatID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = s
}

// Remove deletes the session for a chat.
func (m *memoryStore) Remove(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
