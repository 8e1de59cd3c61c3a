// Package access resolves a caller's role from a session token. Identity
// itself lives in the external access service; the tokens it mints are
// HS256 JWTs verified here against the shared secret. The core trusts the
// resolved role only to decide which fields a caller may set.
package access

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a caller's function in the material lifecycle.
type Role string

const (
	RoleManufacturer      Role = "manufacturer"
	RoleManufacturerAdmin Role = "manufacturer_admin"
	RoleTrackInstaller    Role = "track_installer"
	RoleMaintenance       Role = "maintenance"
	RoleDepotOfficer      Role = "depot_officer"
)

// Identity is the resolved caller.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}

// Resolver turns a session token into an identity.
type Resolver interface {
	ResolveRole(token string) (Identity, error)
}

// Claims is the payload the access service puts in its tokens.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver verifies access-service tokens locally with the shared
// HS256 secret.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver reads the shared secret from ACCESS_JWT_SECRET.
func NewJWTResolver() *JWTResolver {
	return &JWTResolver{secret: []byte(os.Getenv("ACCESS_JWT_SECRET"))}
}

// NewJWTResolverWithSecret is the test constructor.
func NewJWTResolverWithSecret(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret}
}

func (rsv *JWTResolver) ResolveRole(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return rsv.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Identity{}, fmt.Errorf("invalid token claims")
	}

	role := Role(strings.ToLower(claims.Role))
	switch role {
	case RoleManufacturer, RoleManufacturerAdmin, RoleTrackInstaller, RoleMaintenance, RoleDepotOfficer:
	default:
		return Identity{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return Identity{UserID: claims.UserID, Name: claims.Name, Role: role}, nil
}
