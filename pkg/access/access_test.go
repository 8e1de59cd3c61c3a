package access

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, secret []byte, role string, expiry time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u-42",
		Name:   "A Verma",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestResolveRole(t *testing.T) {
	rsv := NewJWTResolverWithSecret(testSecret)
	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		token    string
		wantRole Role
		wantErr  bool
	}{
		{
			name:     "valid maintenance token",
			token:    mintToken(t, testSecret, "maintenance", expiry),
			wantRole: RoleMaintenance,
		},
		{
			name:     "role is normalized to lower case",
			token:    mintToken(t, testSecret, "Depot_Officer", expiry),
			wantRole: RoleDepotOfficer,
		},
		{
			name:    "unknown role",
			token:   mintToken(t, testSecret, "superuser", expiry),
			wantErr: true,
		},
		{
			name:    "expired token",
			token:   mintToken(t, testSecret, "maintenance", time.Now().Add(-time.Minute)),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   mintToken(t, []byte("someone-else"), "maintenance", expiry),
			wantErr: true,
		},
		{
			name:    "garbage token",
			token:   "not.a.jwt",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := rsv.ResolveRole(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got identity %+v", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRole: %v", err)
			}
			if id.Role != tt.wantRole {
				t.Errorf("role = %q, expected %q", id.Role, tt.wantRole)
			}
			if id.UserID != "u-42" || id.Name != "A Verma" {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}
