package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type UserClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GuestClaims is the time-limited credential handed to an unauthenticated
// quiz taker. The jti is also stored on the result row, so verification can
// match token to record without a user account.
type GuestClaims struct {
	ResultID string `json:"result_id"`
	jwt.RegisteredClaims
}

type GuestToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type Manager struct {
	secret        []byte
	tokenTTL      time.Duration
	guestTokenTTL time.Duration
}

func NewManager(secret string, tokenTTL, guestTokenTTL time.Duration) *Manager {
	return &Manager{
		secret:        []byte(secret),
		tokenTTL:      tokenTTL,
		guestTokenTTL: guestTokenTTL,
	}
}

func (m *Manager) SignUser(userID uuid.UUID, role string, now time.Time) (string, error) {
	claims := &UserClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) VerifyUser(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) SignGuest(resultID uuid.UUID, now time.Time) (*GuestToken, error) {
	tokenID := uuid.NewString()
	expiresAt := now.Add(m.guestTokenTTL)

	claims := &GuestClaims{
		ResultID: resultID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	return &GuestToken{
		Token:     signed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

func (m *Manager) VerifyGuest(tokenString string) (*GuestClaims, error) {
	claims := &GuestClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) parse(tokenString string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}

	return nil
}
