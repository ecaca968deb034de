package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareNoopMode(t *testing.T) {
	verifier, err := NewVerifier(Config{Mode: ModeNoop})
	require.NoError(t, err)

	var got AuthenticatedUser
	h := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer user_123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user_123", got.UserID)
}

func TestMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	verifier, err := NewVerifier(Config{Mode: ModeNoop})
	require.NoError(t, err)

	h := Middleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body["code"])
	}
}

func TestMiddlewareNilVerifierPassesThrough(t *testing.T) {
	called := false
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := UserFromContext(r.Context())
		assert.False(t, ok)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestBearerToken(t *testing.T) {
	token, err := bearerToken("bearer  user_1 ")
	require.NoError(t, err)
	assert.Equal(t, "user_1", token)

	_, err = bearerToken("")
	assert.ErrorIs(t, err, errMissingAuthHeader)
	_, err = bearerToken("Bearer")
	assert.ErrorIs(t, err, errInvalidAuthHeader)
	_, err = bearerToken("Token user_1")
	assert.ErrorIs(t, err, errInvalidAuthHeader)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Clerk ")
	require.NoError(t, err)
	assert.Equal(t, ModeClerk, mode)

	mode, err = ParseMode("noop")
	require.NoError(t, err)
	assert.Equal(t, ModeNoop, mode)

	_, err = ParseMode("")
	assert.Error(t, err)
}

func TestNewVerifierUnknownMode(t *testing.T) {
	_, err := NewVerifier(Config{Mode: "saml"})
	assert.Error(t, err)

	_, err = NewVerifier(Config{Mode: ModeClerk})
	assert.Error(t, err, "clerk mode requires a JWKS URL")
}

func TestClerkVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "ins_1",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(jwksServer.Close)

	verifier, err := NewVerifier(Config{Mode: ModeClerk, JWKSURL: jwksServer.URL, Issuer: "https://clerk.evently.test"})
	require.NoError(t, err)
	t.Cleanup(func() { verifier.(*clerkVerifier).jwks.EndBackground() })

	sign := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "ins_1"
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	exp := time.Now().Add(time.Hour).Unix()
	user, err := verifier.Verify(context.Background(), sign(jwt.MapClaims{
		"sub": "user_2abc",
		"sid": "sess_1",
		"iss": "https://clerk.evently.test",
		"exp": exp,
	}))
	require.NoError(t, err)
	assert.Equal(t, "user_2abc", user.UserID)
	assert.Equal(t, "sess_1", user.SessionID)
	assert.Equal(t, exp, user.ExpiresAt)

	_, err = verifier.Verify(context.Background(), sign(jwt.MapClaims{
		"sub": "user_2abc",
		"iss": "https://someone-else.test",
		"exp": exp,
	}))
	assert.Error(t, err, "issuer mismatch")

	_, err = verifier.Verify(context.Background(), sign(jwt.MapClaims{
		"iss": "https://clerk.evently.test",
		"exp": exp,
	}))
	assert.ErrorIs(t, err, errMissingSubject)
}
