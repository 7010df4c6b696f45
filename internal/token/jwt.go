// Package token issues and verifies the HS256 session tokens shared with the
// identity directory.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/middleware/auth"
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles token creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewService(signingKey, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// Issue signs a token for the given identity. Used by the dev token CLI and tests;
// production tokens are minted by the directory service.
func (s *Service) Issue(userID id.UserID, tenantID id.TenantID, role id.Role) (string, error) {
	if userID.IsNil() || tenantID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user and tenant are required")
	}
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	now := s.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:   userID.String(),
		TenantID: tenantID.String(),
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        hex.EncodeToString(b),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies signature, algorithm, expiry and issuer.
func (s *Service) ValidateToken(tokenString string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Validator adapts Service to the auth middleware.
type Validator struct {
	service *Service
}

func NewValidator(service *Service) *Validator {
	return &Validator{service: service}
}

func (v *Validator) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.JWTClaims{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		JTI:      claims.ID,
	}, nil
}
