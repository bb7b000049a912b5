package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role      Role   `json:"role"`
	PartnerID string `json:"partner_id,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 bearer tokens
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken mints a token for role. Partner tokens must name their partner.
func (m *Manager) GenerateToken(role Role, partnerID string) (string, time.Time, error) {
	switch role {
	case RoleAdmin:
		partnerID = ""
	case RolePartner:
		if partnerID == "" {
			return "", time.Time{}, fmt.Errorf("partner token requires a partner id")
		}
	default:
		return "", time.Time{}, fmt.Errorf("unknown role %q", role)
	}

	now := m.now()
	exp := now.Add(m.ttl)
	subject := string(role)
	if partnerID != "" {
		subject = partnerID
	}
	claims := &Claims{
		Role:      role,
		PartnerID: partnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   subject,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.secret)
	return s, exp, err
}

func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role == RolePartner && claims.PartnerID == "" {
		return nil, fmt.Errorf("%w: partner token without partner id", ErrInvalidToken)
	}
	return claims, nil
}
