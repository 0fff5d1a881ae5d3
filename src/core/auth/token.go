package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthToken signs and verifies API bearer tokens.
type AuthToken struct {
	secretKey []byte
}

func NewAuthToken(secretKey string) *AuthToken {
	return &AuthToken{
		secretKey: []byte(secretKey),
	}
}

// GenerateToken issues a one-hour token bound to a client identifier.
func (at *AuthToken) GenerateToken(clientID string) (string, error) {
	expireTime := time.Now().Add(time.Hour)

	claims := jwt.MapClaims{
		"client_id": clientID,
		"exp":       expireTime.Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(at.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken checks signature and expiry and returns the client identifier.
func (at *AuthToken) VerifyToken(tokenString string) (bool, string, error) {
	if at == nil || len(at.secretKey) == 0 {
		return false, "", errors.New("secret key is not initialized")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return at.secretKey, nil
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return false, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, "", errors.New("invalid claims")
	}

	clientID, ok := claims["client_id"].(string)
	if !ok {
		return false, "", errors.New("invalid client_id in claims")
	}

	return true, clientID, nil
}
