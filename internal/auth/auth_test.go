package auth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-invites/internal/auth"
)

const secret = "test-secret"

func protectedHandler(t *testing.T, verifier auth.Verifier) http.Handler {
	return auth.Middleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.UserID(r.Context())))
	}))
}

func doRequest(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareWithHMAC(t *testing.T) {
	verifier, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	h := protectedHandler(t, verifier)

	token, err := auth.SignHMAC(secret, "user-42", time.Hour)
	require.NoError(t, err)

	rec := doRequest(h, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())

	rec = doRequest(h, "bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejects(t *testing.T) {
	verifier, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	h := protectedHandler(t, verifier)

	expired, err := auth.SignHMAC(secret, "user-42", -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.SignHMAC("other-secret", "user-42", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte(secret))
	require.NoError(t, err)
	noSub, err := auth.SignHMAC(secret, "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + foreign},
		{"no expiry", "Bearer " + noExp},
		{"no subject", "Bearer " + noSub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, doRequest(h, tt.header).Code)
		})
	}
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewHMACVerifier("")
	assert.Error(t, err)
}

func TestAnonymous(t *testing.T) {
	h := auth.Anonymous("local")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.UserID(r.Context())))
	}))
	rec := doRequest(h, "")
	assert.Equal(t, "local", rec.Body.String())
	assert.Equal(t, "", auth.UserID(context.Background()))
}

func TestOIDCVerifierWithStaticKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const issuer = "https://id.example.test/realms/invites"
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	verifier := auth.NewOIDCVerifierFrom(oidc.NewVerifier(issuer, keySet, &oidc.Config{SkipClientIDCheck: true}))

	sign := func(iss string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
			Issuer:    iss,
			Subject:   "organizer-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		}).SignedString(key)
		require.NoError(t, err)
		return token
	}

	identity, err := verifier.Verify(context.Background(), sign(issuer))
	require.NoError(t, err)
	assert.Equal(t, "organizer-1", identity.Subject)

	_, err = verifier.Verify(context.Background(), sign("https://evil.example.test"))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

type countingVerifier struct {
	calls atomic.Int32
	next  auth.Verifier
}

func (c *countingVerifier) Verify(ctx context.Context, rawToken string) (*auth.Identity, error) {
	c.calls.Add(1)
	return c.next.Verify(ctx, rawToken)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCachingVerifier(t *testing.T) {
	mr, client := setupTestRedis(t)
	hmac, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	inner := &countingVerifier{next: hmac}
	verifier := auth.NewCachingVerifier(inner, client, 10*time.Minute, nil)
	ctx := context.Background()

	token, err := auth.SignHMAC(secret, "user-7", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		identity, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-7", identity.Subject)
	}
	assert.EqualValues(t, 1, inner.calls.Load())

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], auth.VerifiedTokenKey)
	assert.NotContains(t, keys[0], token)
	assert.LessOrEqual(t, mr.TTL(keys[0]), 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	_, err = verifier.Verify(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachingVerifierDoesNotCacheFailures(t *testing.T) {
	mr, client := setupTestRedis(t)
	hmac, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	verifier := auth.NewCachingVerifier(hmac, client, time.Minute, nil)

	_, err = verifier.Verify(context.Background(), "Bearer nonsense")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.Empty(t, mr.Keys())
}

func TestCachingVerifierSurvivesRedisOutage(t *testing.T) {
	mr, client := setupTestRedis(t)
	hmac, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	verifier := auth.NewCachingVerifier(hmac, client, time.Minute, nil)
	mr.Close()

	token, err := auth.SignHMAC(secret, "user-9", time.Hour)
	require.NoError(t, err)
	identity, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", identity.Subject)
}
