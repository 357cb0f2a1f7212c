package services

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokensService verifies the bearer tokens the identity subsystem mints for
// clients. This core never issues credentials of its own; it only checks the
// signature and extracts the verified username, which every operation then
// trusts.
type TokensService struct {
	SigningSecret string
}

// VerifyToken checks a token's signature and expiry and returns the username
// it was issued to
func (s *TokensService) VerifyToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errForbidden("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.SigningSecret), nil
		},
	)
	if err != nil || !token.Valid {
		return "", errForbidden("invalid token")
	}
	if claims.Subject == "" {
		return "", errForbidden("token has no subject")
	}
	return claims.Subject, nil
}

// CreateToken issues a token for a username. The identity subsystem owns this
// in production; it exists here for local setups and tests.
func (s *TokensService) CreateToken(username string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.SigningSecret))
}
