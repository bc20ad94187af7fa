package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// InitSecret loads the identity provider's RSA public key used to verify
// session tokens. The private key is optional: only the dev token tool signs.
func InitSecret(publicPath, privatePath string) (*JwtSecret, error) {
	pubKeyBytes, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	secret := &JwtSecret{Public: pubKey}

	if privatePath != "" {
		privKeyBytes, err := os.ReadFile(privatePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("path", privatePath).Msg("private key not present, token signing disabled")
		case err != nil:
			return nil, fmt.Errorf("read private key: %w", err)
		default:
			privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privKeyBytes)
			if err != nil {
				return nil, fmt.Errorf("invalid private key: %w", err)
			}
			secret.Private = privKey
		}
	}

	log.Info().Bool("can_sign", secret.Private != nil).Msg("JWT secret initialized successfully")
	return secret, nil
}
