package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies the HS256 bearer tokens that carry the
// current user id in the "sub" claim.
type TokenService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

func NewTokenService(jwtSecret string, jwtExpiry time.Duration) *TokenService {
	return &TokenService{jwtSecret: jwtSecret, jwtExpiry: jwtExpiry}
}

func (s *TokenService) IssueToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken returns the user id of a valid token.
func (s *TokenService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
