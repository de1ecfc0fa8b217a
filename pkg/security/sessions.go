package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// SessionManager issues and validates login sessions
type SessionManager struct {
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// Session binds a random token to a user
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSessionManager creates a session manager whose sessions live for ttl
func NewSessionManager(ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create generates a new session for userID
func (sm *SessionManager) Create(userID string) (*Session, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}

	now := sm.now()
	s := &Session{
		Token:     hex.EncodeToString(bytes),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}

	sm.mu.Lock()
	sm.sessions[s.Token] = s
	sm.mu.Unlock()

	return s, nil
}

// Validate returns the user bound to token
func (sm *SessionManager) Validate(token string) (string, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, exists := sm.sessions[token]
	if !exists {
		return "", ErrInvalidSession
	}

	if sm.now().After(s.ExpiresAt) {
		return "", ErrSessionExpired
	}

	return s.UserID, nil
}

// Revoke ends a session
func (sm *SessionManager) Revoke(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// CleanupExpired removes expired sessions and returns how many were dropped
func (sm *SessionManager) CleanupExpired() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for token, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, token)
			removed++
		}
	}
	return removed
}

// Count returns the number of tracked sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
