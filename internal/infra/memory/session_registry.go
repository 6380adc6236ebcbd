package memory

import (
	"sync"

	"pushluck-trivia-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
	}
}

func (r *SessionRegistry) Put(gameID string, session *app.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[gameID] = session
}

func (r *SessionRegistry) Get(gameID string) (*app.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[gameID]
	return session, ok
}

func (r *SessionRegistry) Delete(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, gameID)
}
