package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"golang.org/x/oauth2"
)

const (
	// userInfoTTL bounds how long a cached userinfo record is served. Every
	// validated request re-saves the record, so active users never expire.
	userInfoTTL = time.Hour

	userSweepInterval = 10 * time.Minute
)

// Store maps authenticated users to their Google tokens and profile data.
// Token persistence is delegated to an mcp-oauth TokenStore; user info is
// kept in memory alongside it and swept in the background once stale.
type Store struct {
	tokens storage.TokenStore

	mu    sync.RWMutex
	users map[string]userEntry

	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

type userEntry struct {
	info      *GoogleUserInfo
	expiresAt time.Time
}

// NewStore creates a store over the given token backend and starts the
// userinfo expiry sweep. Call Close to stop it.
func NewStore(tokens storage.TokenStore) *Store {
	s := &Store{
		tokens: tokens,
		users:  make(map[string]userEntry),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close stops the background expiry sweep. Safe to call more than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(userSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			if removed := s.removeExpiredUsers(now); removed > 0 {
				s.logger.Debug("expired cached user info", slog.Int("removed", removed))
			}
		}
	}
}

func (s *Store) removeExpiredUsers(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for email, entry := range s.users {
		if now.After(entry.expiresAt) {
			delete(s.users, email)
			removed++
		}
	}
	return removed
}

// SaveGoogleToken saves a Google OAuth token for a user. The key is normally
// the user's email address.
func (s *Store) SaveGoogleToken(key string, token *oauth2.Token) error {
	if key == "" {
		return fmt.Errorf("token key must not be empty")
	}
	if token == nil {
		return fmt.Errorf("token must not be nil")
	}
	return s.tokens.SaveToken(context.Background(), key, token)
}

// GetGoogleToken retrieves a Google OAuth token for a user
func (s *Store) GetGoogleToken(email string) (*oauth2.Token, error) {
	token, err := s.tokens.GetToken(context.Background(), email)
	if err != nil {
		return nil, fmt.Errorf("no token stored for %s: %w", email, err)
	}
	return token, nil
}

// SaveGoogleUserInfo caches the userinfo response for a user
func (s *Store) SaveGoogleUserInfo(email string, userInfo *GoogleUserInfo) error {
	if email == "" {
		return fmt.Errorf("email must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = userEntry{info: userInfo, expiresAt: time.Now().Add(userInfoTTL)}
	return nil
}

// GetGoogleUserInfo returns the cached userinfo for a user. Expired entries
// count as missing even before the sweep collects them.
func (s *Store) GetGoogleUserInfo(email string) (*GoogleUserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.users[email]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, fmt.Errorf("no user info stored for %s", email)
	}
	return entry.info, nil
}

// Stats reports the number of cached user records.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"users": len(s.users),
	}
}
