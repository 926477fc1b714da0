package shared

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MintDeveloperToken signs an ES256 Apple Music developer token with a MusicKit private key (PEM encoded .p8).
func MintDeveloperToken(teamID, keyID string, keyPEM []byte, now time.Time, ttl time.Duration) (string, error) {
	if teamID == "" || keyID == "" {
		return "", fmt.Errorf("%w: team_id and key_id are required to mint a developer token", ErrInvalidConfig)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse private key: %v", ErrInvalidConfig, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    teamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}
	return signed, nil
}
