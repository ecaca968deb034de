package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	sharederrors "github.com/M-STRONG/Evently-app/pkg/errors"
)

const bearerScheme = "Bearer"

var (
	errMissingAuthHeader = errors.New("authorization header missing")
	errInvalidAuthHeader = errors.New("authorization header is malformed")
)

type userKey struct{}

// Middleware rejects requests without a token the verifier accepts and stores
// the caller on the request context. A nil verifier disables the check.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r, verifier)
			if err != nil {
				writeUnauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), caller)))
		})
	}
}

func authenticate(r *http.Request, verifier Verifier) (AuthenticatedUser, error) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return AuthenticatedUser{}, err
	}
	return verifier.Verify(r.Context(), token)
}

// bearerToken extracts the credentials of an RFC 6750 Authorization header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", errInvalidAuthHeader
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errInvalidAuthHeader
	}
	return token, nil
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", bearerScheme)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := sharederrors.New(http.StatusUnauthorized, err.Error(), middleware.GetReqID(r.Context()))
	_ = json.NewEncoder(w).Encode(body)
}

// WithUser returns a copy of ctx carrying user, as Middleware stores it.
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext reports the caller stored by Middleware or WithUser.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(userKey{}).(AuthenticatedUser)
	return user, ok
}
