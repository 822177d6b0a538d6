package room

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sharetube/watchroom/internal/domain"
)

type Claims struct {
	RoomID     string      `json:"room_id"`
	MemberRole domain.Role `json:"member_role"`
	jwt.RegisteredClaims
}

// generateAuthToken issues an admin token for r. It lives as long as the room, or
// authTokenTTL for rooms without a duration.
func (s service) generateAuthToken(r *domain.Room, now time.Time) (string, error) {
	expiresAt := now.Add(s.authTokenTTL)
	if r.IsBounded() {
		expiresAt = r.ExpiresAt
	}

	claims := Claims{
		RoomID:     r.ID,
		MemberRole: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign auth token: %w", err)
	}

	return signed, nil
}

func (s service) parseAuthToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuthToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAuthToken
	}

	return claims, nil
}

// grantsAdmin reports whether tokenString is a valid admin token for roomID.
func (s service) grantsAdmin(tokenString, roomID string) bool {
	if tokenString == "" {
		return false
	}

	claims, err := s.parseAuthToken(tokenString)
	if err != nil {
		return false
	}

	return claims.RoomID == roomID && claims.MemberRole == domain.RoleAdmin
}

