package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionCookie is the cookie carrying the session token. The SPA also
// mirrors the token into local storage and sends it as an Authorization
// header; the header wins when both are present.
const SessionCookie = "sessionId"

const (
	tokenScheme  = "Token "
	bearerScheme = "Bearer "
)

// TokenStore keeps session tokens in Redis with a sliding TTL.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a fresh token bound to the user.
func (s *TokenStore) Issue(ctx context.Context, userID int64) (string, error) {
	token := generateToken()
	if err := s.client.Set(ctx, s.key(token), strconv.FormatInt(userID, 10), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user ID bound to the token, refreshing its TTL. The
// second return is false when the token is unknown or expired.
func (s *TokenStore) Resolve(ctx context.Context, token string) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	_ = s.client.Expire(ctx, s.key(token), s.ttl).Err()
	return userID, true, nil
}

// Revoke deletes the token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	err := s.client.Del(ctx, s.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// RevokeAllForUser drops every live token bound to the user. Used when an
// administrator revokes access so the account cannot keep an open session.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	want := strconv.FormatInt(userID, 10)
	iter := s.client.Scan(ctx, 0, "token:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		if owner == want {
			_ = s.client.Del(ctx, key).Err()
		}
	}
	return iter.Err()
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func (s *TokenStore) key(token string) string {
	return "token:" + token
}

func generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return strings.ReplaceAll(id.String(), "-", "")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// TokenFromRequest extracts the session token from the Authorization header
// ("Token <key>" or "Bearer <key>"), falling back to the sessionId cookie.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	for _, scheme := range []string{tokenScheme, bearerScheme} {
		if strings.HasPrefix(header, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(header, scheme))
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
