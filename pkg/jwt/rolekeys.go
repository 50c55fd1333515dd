package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Role names the Postgres role a Supabase API key grants.
type Role string

const (
	// RoleAnon is the unprivileged key handed to browsers.
	RoleAnon Role = "anon"
	// RoleServiceRole bypasses row level security.
	RoleServiceRole Role = "service_role"

	// RoleKeyIssuer is the iss claim Supabase services expect.
	RoleKeyIssuer = "supabase"
	// RoleKeyTTL is the validity window of minted keys.
	RoleKeyTTL = 365 * 24 * time.Hour
)

var (
	// ErrInvalidSecret is returned when the signing secret is empty.
	ErrInvalidSecret = errors.New("jwt: signing secret is required")
	// ErrUnsupportedRole is returned for roles outside anon/service_role.
	ErrUnsupportedRole = errors.New("jwt: unsupported role")
)

// RoleClaims is the payload of a Supabase API key.
type RoleClaims struct {
	Role Role `json:"role"`
	jwtlib.RegisteredClaims
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RoleAnon || r == RoleServiceRole
}

// IssueRoleKey mints an HS256 API key for role signed with secret.
func IssueRoleKey(role Role, secret string) (string, error) {
	return issueRoleKeyAt(role, secret, time.Now())
}

func issueRoleKeyAt(role Role, secret string, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrInvalidSecret
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRole, string(role))
	}
	claims := RoleClaims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    RoleKeyIssuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(RoleKeyTTL)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseRoleKey verifies an API key against secret and returns its claims.
func ParseRoleKey(token, secret string) (*RoleClaims, error) {
	if secret == "" {
		return nil, ErrInvalidSecret
	}
	parsed, err := jwtlib.ParseWithClaims(token, &RoleClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithIssuer(RoleKeyIssuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*RoleClaims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRole, string(claims.Role))
	}
	return claims, nil
}

// KeyPair holds the two API keys a project needs.
type KeyPair struct {
	AnonKey    string `json:"anonKey"`
	ServiceKey string `json:"serviceKey"`
}

// IssueKeyPair mints both anon and service_role keys from secret.
func IssueKeyPair(secret string) (KeyPair, error) {
	anon, err := IssueRoleKey(RoleAnon, secret)
	if err != nil {
		return KeyPair{}, err
	}
	service, err := IssueRoleKey(RoleServiceRole, secret)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{AnonKey: anon, ServiceKey: service}, nil
}
