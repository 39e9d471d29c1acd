package auth

import (
	"errors"
	"fmt"
	"time"

	"leadmarket/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleContractor = "contractor"
	RoleAdmin      = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims are issued by the identity provider; the subject is the contractor
// id for contractors and an operator handle for admins.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if role != RoleContractor && role != RoleAdmin {
		return "", ErrUnknownRole
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Actor maps verified claims onto the caller identity used by the services.
func (c *Claims) Actor() (models.Actor, error) {
	switch c.Role {
	case RoleContractor:
		return models.Contractor(c.Subject), nil
	case RoleAdmin:
		return models.Admin(c.Subject), nil
	default:
		return models.Unauthenticated(), fmt.Errorf("%w: %q", ErrUnknownRole, c.Role)
	}
}

// HashServiceKey produces the bcrypt hash stored in configuration for a
// collaborator's shared key.
func HashServiceKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckServiceKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
