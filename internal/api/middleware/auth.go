package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragchat/internal/api"
	"github.com/cloo-solutions/ragchat/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// TokenValidator resolves a bearer token to a client identifier.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticToken accepts a single shared API key.
type StaticToken struct {
	key []byte
}

func NewStaticToken(key string) *StaticToken {
	return &StaticToken{key: []byte(key)}
}

// ValidateToken compares in constant time and identifies the caller by a
// short fingerprint of the key.
func (s *StaticToken) ValidateToken(_ context.Context, token string) (string, error) {
	if len(s.key) == 0 || subtle.ConstantTimeCompare([]byte(token), s.key) != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	sum := sha256.Sum256(s.key)
	return "key_" + hex.EncodeToString(sum[:4]), nil
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(message string) {
				TraceFrom(r.Context()).RecordError(domain.ErrInvalidAPIKey)
				api.Error(w, http.StatusUnauthorized, message)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject("missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				reject("invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				reject("invalid api key")
				return
			}

			TraceFrom(r.Context()).SetClient(clientID)
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
