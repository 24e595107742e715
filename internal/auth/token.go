package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims bind a resume token to one player in one room.
type Claims struct {
	PlayerID string `json:"player_id"`
	RoomID   string `json:"room_id"`
	jwt.RegisteredClaims
}

var errEmptySecret = errors.New("empty signing secret")

// Issue mints an HMAC-signed resume token for a player session.
func Issue(secret []byte, playerID, roomID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errEmptySecret
	}
	now := time.Now()
	claims := Claims{
		PlayerID: playerID,
		RoomID:   roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse validates a resume token and returns its claims.
func Parse(secret []byte, token string) (Claims, error) {
	if len(secret) == 0 {
		return Claims{}, errEmptySecret
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid || claims.PlayerID == "" || claims.RoomID == "" {
		return Claims{}, errors.New("invalid resume token")
	}
	return claims, nil
}
