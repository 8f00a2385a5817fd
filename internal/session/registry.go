package session

import (
	"sync"
	"time"

	"cardroom/internal/engine"
)

// Entry is what the registry knows about one live match. The session
// itself stays inside its match goroutine; RPCs only need routing data.
type Entry struct {
	SessionID string
	MatchID   string
	Kind      engine.Kind
	Open      bool
	CreatedAt time.Time

	seats map[string]int // userID -> seat index
}

// Registry maps users and session ids to matches so the rejoin and
// quick-match RPCs can route without touching match goroutines.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Entry
	byUser map[string]string // userID -> sessionID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Entry),
		byUser: make(map[string]string),
	}
}

// Default is the process-wide registry shared by match handlers and RPCs.
var Default = NewRegistry()

// Put registers or refreshes a match.
func (r *Registry) Put(sessionID, matchID string, kind engine.Kind, open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[sessionID]
	if !ok {
		e = &Entry{
			SessionID: sessionID,
			MatchID:   matchID,
			Kind:      kind,
			CreatedAt: time.Now(),
			seats:     make(map[string]int),
		}
		r.byID[sessionID] = e
	}
	e.MatchID = matchID
	e.Open = open
}

// Remove drops a finished match and its user bindings.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[sessionID]
	if !ok {
		return
	}
	for userID := range e.seats {
		if r.byUser[userID] == sessionID {
			delete(r.byUser, userID)
		}
	}
	delete(r.byID, sessionID)
}

// BindSeat records which seat a user holds in a session.
func (r *Registry) BindSeat(sessionID, userID string, seat int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[sessionID]
	if !ok {
		return
	}
	e.seats[userID] = seat
	r.byUser[userID] = sessionID
}

// UnbindSeat forgets a user's seat, typically after a boot.
func (r *Registry) UnbindSeat(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[sessionID]
	if !ok {
		return
	}
	delete(e.seats, userID)
	if r.byUser[userID] == sessionID {
		delete(r.byUser, userID)
	}
}

// Lookup returns the entry for a session id.
func (r *Registry) Lookup(sessionID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// FindByUser returns the session a user is seated in, with their seat.
func (r *Registry) FindByUser(userID string) (Entry, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.byUser[userID]
	if !ok {
		return Entry{}, -1, false
	}
	e, ok := r.byID[sessionID]
	if !ok {
		return Entry{}, -1, false
	}
	seat, ok := e.seats[userID]
	if !ok {
		return Entry{}, -1, false
	}
	return *e, seat, true
}

// OpenMatch returns an open match of the given kind, oldest first.
func (r *Registry) OpenMatch(kind engine.Kind) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Entry
	for _, e := range r.byID {
		if !e.Open || e.Kind != kind {
			continue
		}
		if best == nil || e.CreatedAt.Before(best.CreatedAt) {
			best = e
		}
	}
	if best == nil {
		return Entry{}, false
	}
	return *best, true
}
