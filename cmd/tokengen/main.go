// Package main issues session tokens for local development against the agenda
// API and its websocket endpoint. Tokens are signed with the dev key by
// default and will not verify against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"agenda/internal/token"
	id "agenda/pkg/domain"
)

const (
	// matches config.go when AUTH_JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"
	devIssuer     = "agenda-directory"
	devTenantID   = "aaaa0000-0000-0000-0000-000000000001"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	UserID    string            `json:"user_id"`
	TenantID  string            `json:"tenant_id"`
	Role      string            `json:"role"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	fs := flag.NewFlagSet("tokengen", flag.ExitOnError)
	userFlag := fs.String("user-id", "", "User ID (UUID). Generated if empty.")
	tenantFlag := fs.String("tenant-id", devTenantID, "Tenant ID (UUID)")
	roleFlag := fs.String("role", string(id.RoleMember), "Role: member or owner")
	keyFlag := fs.String("key", envOr("AUTH_JWT_SIGNING_KEY", devSigningKey), "HMAC signing key")
	issuerFlag := fs.String("issuer", envOr("AUTH_ISSUER", devIssuer), "Token issuer")
	ttlFlag := fs.Duration("ttl", time.Hour, "Token time-to-live")
	jsonFlag := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if err := run(*userFlag, *tenantFlag, *roleFlag, *keyFlag, *issuerFlag, *ttlFlag, *jsonFlag); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(rawUser, rawTenant, rawRole, key, issuer string, ttl time.Duration, asJSON bool) error {
	userID := id.UserID(uuid.New())
	if rawUser != "" {
		parsed, err := id.ParseUserID(rawUser)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		userID = parsed
	}
	tenantID, err := id.ParseTenantID(rawTenant)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	role, ok := id.ParseRole(rawRole)
	if !ok {
		return fmt.Errorf("invalid role %q", rawRole)
	}

	raw, err := token.NewService(key, issuer, ttl).Issue(userID, tenantID, role)
	if err != nil {
		return err
	}

	if !asJSON {
		fmt.Println(raw)
		return nil
	}
	out := tokenOutput{
		Token:     raw,
		UserID:    userID.String(),
		TenantID:  tenantID.String(),
		Role:      string(role),
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"http":      "Authorization: Bearer " + raw,
			"websocket": "/ws?token=" + raw,
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
