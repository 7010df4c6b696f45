package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "agenda/pkg/domain"
	"agenda/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID   string
	TenantID string
	Role     string
	JTI      string
}

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidClaims = errors.New("malformed token claims")
)

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// HandshakeToken extracts the token for long-lived connections. Browsers
// cannot set headers on a websocket upgrade, so the "token" query parameter
// is accepted as a fallback.
func HandshakeToken(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r); ok {
		return token, true
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	return token, token != ""
}

// Authenticate validates a raw token and builds the Principal from its claims only.
func Authenticate(validator JWTValidator, token string) (id.Principal, error) {
	if token == "" {
		return id.Principal{}, ErrMissingToken
	}
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return id.Principal{}, err
	}
	return parseClaims(claims, token)
}

func parseClaims(claims *JWTClaims, token string) (id.Principal, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return id.Principal{}, fmt.Errorf("%w: user_id: %w", ErrInvalidClaims, err)
	}
	tenantID, err := id.ParseTenantID(claims.TenantID)
	if err != nil {
		return id.Principal{}, fmt.Errorf("%w: tenant_id: %w", ErrInvalidClaims, err)
	}
	role, ok := id.ParseRole(claims.Role)
	if !ok {
		return id.Principal{}, fmt.Errorf("%w: role %q", ErrInvalidClaims, claims.Role)
	}
	return id.Principal{
		UserID:     userID,
		TenantID:   tenantID,
		Role:       role,
		Credential: token,
	}, nil
}

// RequireAuth returns middleware that validates JWT tokens and stores the
// caller's Principal in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			principal, err := Authenticate(validator, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// PrincipalFrom is used by handlers mounted behind RequireAuth.
func PrincipalFrom(ctx context.Context) (id.Principal, bool) {
	return requestcontext.Principal(ctx)
}
