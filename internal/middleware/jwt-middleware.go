package middleware

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
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/utils"
)

type claimsKey string

// UserClaimsKey holds the authenticated user id (the token subject).
const UserClaimsKey claimsKey = "userClaims"

const revocationLookupTimeout = 2 * time.Second

// JWTAuth validates the bearer token issued by the identity provider and
// rejects token ids present on the redis revocation list. rdb may be nil.
func JWTAuth(publicKey *rsa.PublicKey, rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Missing Authorization header", "auth"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Invalid Authorization header format", "auth"))
				return
			}

			claims, err := utils.ParseAndVerifySign(parts[1], publicKey)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Token expired", "auth"))
					return
				}
				log.Error().Err(err).Msg("jwt verify failed")
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Invalid token", "auth"))
				return
			}

			if rdb != nil && claims.ID != "" {
				ctx, cancel := context.WithTimeout(r.Context(), revocationLookupTimeout)
				revoked, err := rdb.Exists(ctx, utils.RevokedKey(claims.ID)).Result()
				cancel()
				if err != nil {
					log.Error().Err(err).Msg("revocation lookup failed")
					writeAppError(w, app_error.NewAppError(http.StatusServiceUnavailable, "Session lookup failed", "auth"))
					return
				}
				if revoked > 0 {
					writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Session revoked", "auth"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserClaimsKey).(string)
	return userID, ok && userID != ""
}

func writeAppError(w http.ResponseWriter, appErr *app_error.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_ = appErr.JSON(w)
}
