// Package middleware содержит HTTP middleware для сервиса projectdesk.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

const authCookieName = "auth_token"

// AuthMiddleware проверяет JWT владельца из cookie или заголовка Authorization.
// Токены выпускает внешний сервис аутентификации с тем же секретом.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен и добавляет идентификатор владельца в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ownerID, err := a.ParseToken(token)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken выпускает токен для владельца со сроком действия ttl.
func (a *AuthMiddleware) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secretKey)
}

// ParseToken проверяет подпись и срок действия токена и возвращает идентификатор владельца.
func (a *AuthMiddleware) ParseToken(tokenStr string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return a.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(authCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// GetOwnerIDFromContext извлекает идентификатор владельца из контекста запроса.
func GetOwnerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerIDKey).(string)
	return id, ok && id != ""
}

// WithOwnerID добавляет идентификатор владельца в контекст.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}
