// Package auth keeps per-session OAuth tokens. Tokens arrive from the
// browser after the implicit-flow redirect; the backend only stores and
// hands them to the adapters, it never exchanges or refreshes anything.
package auth

import (
	"fmt"
	"sync"
	"time"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"
)

const (
	sessionTTL      = 24 * time.Hour
	cleanupInterval = 1 * time.Hour
)

type session struct {
	tokens       map[models.Provider]*models.Token
	lastAccessed time.Time
}

// Store provides in-memory storage of implicit-flow tokens per browser
// session, with TTL-based cleanup of abandoned sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewStore creates a token store and starts its cleanup routine
func NewStore() *Store {
	s := &Store{
		sessions: make(map[string]*session),
	}
	go s.startCleanupRoutine()
	return s
}

// SetToken registers a token for a session and provider
func (s *Store) SetToken(sessionID string, token *models.Token) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if !token.Valid() {
		return fmt.Errorf("%w: empty access token", remote.ErrAuth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{tokens: make(map[models.Provider]*models.Token)}
		s.sessions[sessionID] = sess
	}
	sess.tokens[token.Provider] = token
	sess.lastAccessed = time.Now()
	return nil
}

// Token returns the token registered for a session and provider. A missing
// token is an auth failure for the caller to surface; there is nothing to
// retry.
func (s *Store) Token(sessionID string, provider models.Provider) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown session", remote.ErrAuth)
	}
	if time.Since(sess.lastAccessed) > sessionTTL {
		delete(s.sessions, sessionID)
		return nil, fmt.Errorf("%w: session expired", remote.ErrAuth)
	}
	sess.lastAccessed = time.Now()

	token, ok := sess.tokens[provider]
	if !ok {
		return nil, fmt.Errorf("%w: no %s token for this session", remote.ErrAuth, provider)
	}
	return token, nil
}

// DeleteToken removes a provider token from a session (logout)
func (s *Store) DeleteToken(sessionID string, provider models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		delete(sess.tokens, provider)
		if len(sess.tokens) == 0 {
			delete(s.sessions, sessionID)
		}
	}
}

func (s *Store) startCleanupRoutine() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanupExpiredSessions()
	}
}

func (s *Store) cleanupExpiredSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccessed) > sessionTTL {
			delete(s.sessions, id)
		}
	}
}
