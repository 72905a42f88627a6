// Package session provides the in-memory conversation store with idle
// eviction.
//
// Two concurrent requests for the same session are not serialized against
// each other: each works on its own copy and the later Update wins. The maps
// themselves are guarded, so access is always safe, but a lost earlier update
// is accepted behavior.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sfbridge-dev/sfbridge/internal/apperrors"
	"github.com/sfbridge-dev/sfbridge/internal/models"
)

const (
	// DefaultIdleTimeout evicts sessions with no reads or writes for this
	// long.
	DefaultIdleTimeout = 30 * time.Minute

	sweepInterval = time.Minute
)

// Store owns all sessions. State is volatile; nothing is persisted.
type Store struct {
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	stopCh   chan struct{}

	now func() time.Time
}

// NewStore creates a Store and starts its idle-eviction sweep.
func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	s := &Store{
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	go s.sweepLoop()

	return s
}

// Close stops the background sweep.
func (s *Store) Close() {
	close(s.stopCh)
}

// Create creates a new session. An empty id asks the store to generate one.
func (s *Store) Create(id string, auth *models.AuthContext) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	sess := &Session{
		ID:             id,
		Messages:       []models.Message{},
		CreatedAt:      now,
		LastActivityAt: now,
		Auth:           auth,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return sess.clone()
}

// Get returns a copy of the session and touches its activity timestamp.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.LastActivityAt = s.now()
	return sess.clone(), true
}

// Update replaces the stored session with the caller's mutated copy.
func (s *Store) Update(id string, updated *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return apperrors.New(apperrors.ErrCodeSessionNotFound, "session not found: "+id, nil)
	}
	stored := updated.clone()
	stored.ID = id
	stored.LastActivityAt = s.now()
	s.sessions[id] = stored
	return nil
}

// UpdateAuth replaces only the stored AuthContext; the latest validated
// credential for a session always wins.
func (s *Store) UpdateAuth(id string, auth *models.AuthContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return apperrors.New(apperrors.ErrCodeSessionNotFound, "session not found: "+id, nil)
	}
	sess.Auth = auth
	sess.LastActivityAt = s.now()
	return nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivityAt) > s.idleTimeout {
			delete(s.sessions, id)
		}
	}
}
