package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims is the access token payload. Email rides along so handlers can log
// and respond without a user lookup.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// DenyList tracks revoked token ids until their natural expiry.
type DenyList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Service signs and verifies HS256 access tokens. Logout works by putting the
// token id on a deny list checked during verification.
type Service struct {
	secret   []byte
	ttl      time.Duration
	denyList DenyList
}

func NewService(secret string, ttl time.Duration, denyList DenyList) *Service {
	return &Service{
		secret:   []byte(secret),
		ttl:      ttl,
		denyList: denyList,
	}
}

// Issue signs a fresh token for the user. The jti is random so individual
// tokens can be revoked without touching the rest of the user's sessions.
func (s *Service) Issue(userID int64, email string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token, rejecting revoked ids.
func (s *Service) Verify(ctx context.Context, signed string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(signed, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return claims, ErrInvalidToken
	}

	revoked, err := s.denyList.IsRevoked(ctx, claims.ID)
	if err != nil {
		return claims, fmt.Errorf("token: failed to check deny list: %w", err)
	}
	if revoked {
		return claims, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates a verified token for the remainder of its lifetime.
func (s *Service) Revoke(ctx context.Context, claims Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.denyList.Revoke(ctx, claims.ID, ttl)
}

// Refresh revokes the old token and issues a replacement in one step.
func (s *Service) Refresh(ctx context.Context, claims Claims) (string, error) {
	if err := s.Revoke(ctx, claims); err != nil {
		return "", err
	}
	return s.Issue(claims.UserID, claims.Email)
}

// RedisDenyList keeps revoked ids in Redis so revocation survives restarts
// and is shared across instances.
type RedisDenyList struct {
	client *redis.Client
}

func NewRedisDenyList(client *redis.Client) *RedisDenyList {
	return &RedisDenyList{client: client}
}

func (d *RedisDenyList) key(jti string) string {
	return "authkit:revoked:" + jti
}

func (d *RedisDenyList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := d.client.Set(ctx, d.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("token: failed to revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenyList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("token: failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryDenyList is the single-instance fallback used when Redis is not
// configured. Expired entries are swept lazily on lookup.
type MemoryDenyList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryDenyList() *MemoryDenyList {
	return &MemoryDenyList{revoked: make(map[string]time.Time)}
}

func (d *MemoryDenyList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (d *MemoryDenyList) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, expiry := range d.revoked {
		if expiry.Before(now) {
			delete(d.revoked, id)
		}
	}

	_, ok := d.revoked[jti]
	return ok, nil
}
