package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// RoomTokenClaims are the claims in an optional room-access token minted by
// the external identity service.
type RoomTokenClaims struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// ValidateRoomToken validates an HMAC-signed room token and returns its
// claims. Callers decide whether an absent token is acceptable; anonymous
// voice callers carry none.
func ValidateRoomToken(tokenString string, secret []byte) (*RoomTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*RoomTokenClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}
