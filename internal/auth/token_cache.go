package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-invites/internal/logger"
)

// VerifiedTokenKey prefixes cached verification results in Redis
const VerifiedTokenKey = "verified_token:"

// CachingVerifier remembers successful verifications in Redis until the token's expiry or
// maxTTL, whichever comes first. Failures are never cached.
type CachingVerifier struct {
	next   Verifier
	client *redis.Client
	maxTTL time.Duration
	logger *logger.Logger
	now    func() time.Time
}

func NewCachingVerifier(next Verifier, client *redis.Client, maxTTL time.Duration, log *logger.Logger) *CachingVerifier {
	if log == nil {
		log = logger.Discard()
	}
	return &CachingVerifier{next: next, client: client, maxTTL: maxTTL, logger: log, now: time.Now}
}

type cachedIdentity struct {
	Subject   string    `json:"sub"`
	ExpiresAt time.Time `json:"exp"`
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return VerifiedTokenKey + hex.EncodeToString(sum[:])
}

func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	key := tokenKey(rawToken)

	if data, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedIdentity
		if json.Unmarshal(data, &cached) == nil && c.now().Before(cached.ExpiresAt) {
			return &Identity{Subject: cached.Subject, ExpiresAt: cached.ExpiresAt}, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("AUTH", "Token cache read failed: "+err.Error())
	}

	identity, err := c.next.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	ttl := c.maxTTL
	if remaining := identity.ExpiresAt.Sub(c.now()); identity.ExpiresAt.IsZero() || remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		data, _ := json.Marshal(cachedIdentity{Subject: identity.Subject, ExpiresAt: identity.ExpiresAt})
		if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
			c.logger.Warn("AUTH", "Token cache write failed: "+err.Error())
		}
	}
	return identity, nil
}
