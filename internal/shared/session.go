package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues Redis-backed session tokens. A token travels either in
// the Authorization header as a bearer token or in an HttpOnly cookie. Redis
// only ever sees an HMAC of the token.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	issuedAt  time.Time
	isNew     bool
	dirty     bool
	destroyed bool
	stale     bool
}

type sessionPayload struct {
	Values   map[string]string `json:"values"`
	UserID   string            `json:"user_id"`
	IssuedAt time.Time         `json:"issued_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
	}
}

// Load resolves the session named by the request token. Requests without a
// token get a fresh anonymous session; a token that Redis no longer knows
// yields an anonymous session flagged as stale so the cookie gets cleared.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := sm.tokenFromRequest(r)
	if token == "" {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sm.StorageKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.newSession()
			sess.stale = true
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	return &Session{
		ID:       token,
		values:   stored.Values,
		userID:   stored.UserID,
		issuedAt: stored.IssuedAt,
	}, nil
}

// Commit persists authenticated sessions and writes cookie headers as needed.
// Anonymous sessions are never stored.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if sess.ID != "" {
			if err := sm.client.Del(ctx, sm.StorageKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
		}
		sm.clearCookie(w)
		sess.destroyed = false
		sess.stale = false
		return nil
	}

	if sess.userID == "" {
		if sess.stale {
			sm.clearCookie(w)
			sess.stale = false
		}
		return nil
	}

	if !sess.dirty {
		return nil
	}

	data, err := json.Marshal(sessionPayload{Values: sess.values, UserID: sess.userID, IssuedAt: sess.issuedAt})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sm.StorageKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return err
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

// Renew rotates the session token, discarding any stored state under the old one.
func (sm *SessionManager) Renew(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.isNew && sess.ID != "" {
		if err := sm.client.Del(ctx, sm.StorageKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
	}
	sess.ID = uuid.NewString()
	sess.issuedAt = time.Now().UTC()
	sess.isNew = true
	sess.dirty = true
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.userID = ""
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// RequireUser rejects requests whose session carries no user. The rejection
// is delegated so callers can render it in their own error format.
func RequireUser(reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// SetUser associates the session with a user ID.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.userID
}

// Stale reports whether the request presented a token that has expired or was never issued.
func (s *Session) Stale() bool {
	return s.stale
}

// IssuedAt returns when the token was issued.
func (s *Session) IssuedAt() time.Time {
	return s.issuedAt
}

func (sm *SessionManager) tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sm.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (sm *SessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		values: make(map[string]string),
		isNew:  true,
	}
}

// StorageKey returns the Redis key holding the session for token.
func (sm *SessionManager) StorageKey(token string) string {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(token))
	return "session:" + hex.EncodeToString(mac.Sum(nil))
}
