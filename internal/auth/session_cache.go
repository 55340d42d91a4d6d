package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lguportal/portal/internal/cache"
	"github.com/lguportal/portal/internal/models"
)

const (
	sessionTokenKeyPrefix = "auth:sessions:token:"
	sessionIDKeyPrefix    = "auth:sessions:id:"
)

var errSessionCacheMiss = errors.New("session cache miss")

// SessionCache is a read-through cache for session rows. Entries are
// addressable by token and by id.
type SessionCache interface {
	GetByToken(ctx context.Context, token string) (*models.Session, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Set(ctx context.Context, session *models.Session, ttl time.Duration) error
	Delete(ctx context.Context, session *models.Session) error
}

// cachedSession mirrors models.Session including the fields hidden from JSON responses.
type cachedSession struct {
	ID         string     `json:"id"`
	Token      string     `json:"token"`
	UserID     uint       `json:"user_id"`
	IPAddress  string     `json:"ip_address"`
	UserAgent  string     `json:"user_agent"`
	CSRFToken  string     `json:"csrf_token"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// NewSessionCache wraps a cache.Store (Redis or SQL) as a SessionCache.
func NewSessionCache(store cache.Store) SessionCache {
	if store == nil {
		return nil
	}
	return &storeSessionCache{store: store}
}

type storeSessionCache struct {
	store cache.Store
}

func (c *storeSessionCache) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	return c.get(ctx, keyFor(sessionTokenKeyPrefix, token))
}

func (c *storeSessionCache) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return c.get(ctx, keyFor(sessionIDKeyPrefix, id))
}

func (c *storeSessionCache) get(ctx context.Context, key string) (*models.Session, error) {
	if key == "" {
		return nil, errSessionCacheMiss
	}
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionCacheMiss
	}

	var entry cachedSession
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return &models.Session{
		ID:         entry.ID,
		Token:      entry.Token,
		UserID:     entry.UserID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		CSRFToken:  entry.CSRFToken,
		IsActive:   entry.IsActive,
		CreatedAt:  entry.CreatedAt,
		ExpiresAt:  entry.ExpiresAt,
		LastSeenAt: entry.LastSeenAt,
		EndedAt:    entry.EndedAt,
	}, nil
}

func (c *storeSessionCache) Set(ctx context.Context, session *models.Session, ttl time.Duration) error {
	if session == nil || session.Token == "" || session.ID == "" {
		return errors.New("session cache: session is incomplete")
	}
	payload, err := json.Marshal(cachedSession{
		ID:         session.ID,
		Token:      session.Token,
		UserID:     session.UserID,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
		CSRFToken:  session.CSRFToken,
		IsActive:   session.IsActive,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
		LastSeenAt: session.LastSeenAt,
		EndedAt:    session.EndedAt,
	})
	if err != nil {
		return fmt.Errorf("session cache: marshal: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.store.Set(ctx, keyFor(sessionTokenKeyPrefix, session.Token), payload, ttl); err != nil {
		return err
	}
	return c.store.Set(ctx, keyFor(sessionIDKeyPrefix, session.ID), payload, ttl)
}

func (c *storeSessionCache) Delete(ctx context.Context, session *models.Session) error {
	if session == nil {
		return nil
	}
	keys := make([]string, 0, 2)
	if key := keyFor(sessionTokenKeyPrefix, session.Token); key != "" {
		keys = append(keys, key)
	}
	if key := keyFor(sessionIDKeyPrefix, session.ID); key != "" {
		keys = append(keys, key)
	}
	return c.store.Delete(ctx, keys...)
}

func keyFor(prefix, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return prefix + value
}
