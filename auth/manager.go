// Package auth implements cookie-based session authentication for the
// experiment platform. Tokens are random 32-byte hex strings held in memory
// and mirrored into Redis when available, so a restart does not log every
// participant out mid-experiment.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tradelab/cache"
	models "tradelab/database/models_pkg"
)

// CookieName is the session cookie set on login.
const CookieName = "tradelab_session"

const redisKeyPrefix = "session:"

// AuthError indicates a failed login or an invalid session token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// userLookup is the slice of the user repository the manager needs.
type userLookup interface {
	ByUsername(username string) (*models.User, error)
	ByID(id int64) (*models.User, error)
}

type sessionEntry struct {
	userID    int64
	expiresAt time.Time
}

// Manager validates credentials and tracks live session tokens.
type Manager struct {
	users  userLookup
	redis  *cache.RedisClient
	ttl    time.Duration
	mu     sync.RWMutex
	tokens map[string]sessionEntry
}

// NewManager creates a session manager. redis may be nil; sessions then live
// only in process memory.
func NewManager(users userLookup, redis *cache.RedisClient, ttl time.Duration) *Manager {
	return &Manager{
		users:  users,
		redis:  redis,
		ttl:    ttl,
		tokens: make(map[string]sessionEntry),
	}
}

// Login checks the credentials and, when they match an active account, issues
// a session token for it.
func (m *Manager) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := m.users.ByUsername(username)
	if err != nil {
		return nil, "", &AuthError{Reason: "invalid username or password"}
	}
	if !user.Active {
		return nil, "", &AuthError{Reason: "account is disabled"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", &AuthError{Reason: "invalid username or password"}
	}

	token, err := newToken()
	if err != nil {
		return nil, "", fmt.Errorf("Login: %w", err)
	}

	m.mu.Lock()
	m.tokens[token] = sessionEntry{userID: user.ID, expiresAt: time.Now().Add(m.ttl)}
	m.mu.Unlock()

	if m.redis != nil {
		key := redisKeyPrefix + token
		if err := m.redis.SetString(ctx, key, strconv.FormatInt(user.ID, 10), m.ttl); err != nil {
			log.Printf("⚠️  Failed to mirror session to Redis: %v", err)
		}
	}

	return user, token, nil
}

// Resolve maps a session token back to its user. Expired and unknown tokens
// yield an AuthError.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &AuthError{Reason: "missing session token"}
	}

	m.mu.RLock()
	entry, ok := m.tokens[token]
	m.mu.RUnlock()

	if ok {
		if time.Now().After(entry.expiresAt) {
			m.mu.Lock()
			delete(m.tokens, token)
			m.mu.Unlock()
			return nil, &AuthError{Reason: "session expired"}
		}
		return m.resolveUser(entry.userID)
	}

	// Not in memory, maybe another instance (or a previous run) issued it.
	if m.redis != nil {
		val, err := m.redis.GetString(ctx, redisKeyPrefix+token)
		if err == nil {
			userID, convErr := strconv.ParseInt(val, 10, 64)
			if convErr == nil {
				m.mu.Lock()
				m.tokens[token] = sessionEntry{userID: userID, expiresAt: time.Now().Add(m.ttl)}
				m.mu.Unlock()
				return m.resolveUser(userID)
			}
		}
	}

	return nil, &AuthError{Reason: "invalid session token"}
}

func (m *Manager) resolveUser(userID int64) (*models.User, error) {
	user, err := m.users.ByID(userID)
	if err != nil {
		return nil, &AuthError{Reason: "account no longer exists"}
	}
	if !user.Active {
		return nil, &AuthError{Reason: "account is disabled"}
	}
	return user, nil
}

// Logout invalidates a session token. Unknown tokens are ignored.
func (m *Manager) Logout(ctx context.Context, token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()

	if m.redis != nil {
		if err := m.redis.Delete(ctx, redisKeyPrefix+token); err != nil {
			log.Printf("⚠️  Failed to remove session from Redis: %v", err)
		}
	}
}

// HashPassword produces a bcrypt hash for account management endpoints.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPassword: %w", err)
	}
	return string(hash), nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("newToken: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
