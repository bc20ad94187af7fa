package websocket

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/utils"
)

// AuthenticatorFunc resolves the user behind an upgrade request.
type AuthenticatorFunc func(r *http.Request) (userID string, err error)

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// JWTWebSocketAuth validates the identity provider's session token and
// rejects token ids found on the redis revocation list.
func JWTWebSocketAuth(publicKey *rsa.PublicKey, rdb *redis.Client) AuthenticatorFunc {
	return func(r *http.Request) (string, error) {
		token := getTokenFromRequest(r)
		if token == "" {
			return "", &AuthError{Message: "missing token"}
		}

		claims, err := utils.ParseAndVerifySign(token, publicKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				// the handshake cannot refresh; the client renews over HTTP and reconnects
				return "", &AuthError{Message: "token expired, please refresh and reconnect"}
			}
			return "", &AuthError{Message: "invalid token"}
		}

		if rdb != nil && claims.ID != "" {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			revoked, err := rdb.Exists(ctx, utils.RevokedKey(claims.ID)).Result()
			if err != nil {
				log.Error().Err(err).Msg("ws: revocation lookup failed")
				return "", &AuthError{Message: "session lookup failed"}
			}
			if revoked > 0 {
				return "", &AuthError{Message: "session revoked"}
			}
		}

		return claims.Subject, nil
	}
}

func getTokenFromRequest(r *http.Request) string {
	// Option 1: Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Option 2: Query parameter
	token := r.URL.Query().Get("token")
	if token != "" {
		return token
	}

	// Option 3: Cookie
	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
