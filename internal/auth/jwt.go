package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Sessions mints and validates the short-lived tokens that carry a
// verified join: the (localID, peerID, displayName) triple seeding the
// stream manager.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

type SessionClaims struct {
	PeerID      string `json:"peer_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

func (s *Sessions) Issue(localID, peerID, displayName string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		PeerID:      peerID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   localID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate returns the session triple from a token.
func (s *Sessions) Validate(token string) (localID, peerID, displayName string, err error) {
	var claims SessionClaims
	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return "", "", "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.PeerID == "" {
		return "", "", "", ErrInvalidToken
	}
	return claims.Subject, claims.PeerID, claims.DisplayName, nil
}
