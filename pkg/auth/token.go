package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/config"
	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// Claims carries the authenticated identity through the request pipeline.
type Claims struct {
	UserID   uuid.UUID  `json:"uid"`
	TenantID uuid.UUID  `json:"tid"`
	Role     enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// IsTenantAdmin reports whether the caller can manage licenses for the tenant.
func (c *Claims) IsTenantAdmin() bool {
	return c != nil && (c.Role == enums.RoleTenantAdmin || c.Role == enums.RolePlatformAdmin)
}

// IsPlatformAdmin reports whether the caller can operate across tenants.
func (c *Claims) IsPlatformAdmin() bool {
	return c != nil && c.Role == enums.RolePlatformAdmin
}

// IssueToken signs an access token for the given identity.
func IssueToken(cfg config.JWTConfig, userID, tenantID uuid.UUID, role enums.Role) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL())),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and standard claims of an access token.
func ParseToken(cfg config.JWTConfig, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil {
		return nil, fmt.Errorf("token missing identity claims")
	}
	return claims, nil
}
