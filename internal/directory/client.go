// Package directory talks to the identity directory service that owns users
// and tenants.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
)

// UserSummary is the directory's view of a user.
type UserSummary struct {
	ID       id.UserID
	TenantID id.TenantID
	Email    string
	Role     id.Role
}

// Client fetches a single user. Implementations return sentinel.ErrNotFound
// for unknown users and any other error for transport or upstream failures.
type Client interface {
	FetchUser(ctx context.Context, userID id.UserID, credential string) (*UserSummary, error)
}

// UpstreamError reports a non-success status from the directory.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("directory responded with status %d", e.Status)
}

// HTTPClient calls GET {base}/users/{id} forwarding the caller's bearer token.
// The per-call deadline comes from the context.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type userResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsOwner  *bool  `json:"is_owner,omitempty"`
}

func (c *HTTPClient) FetchUser(ctx context.Context, userID id.UserID, credential string) (*UserSummary, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(userID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call directory: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	var body userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	return body.toSummary(userID)
}

func (r userResponse) toSummary(requested id.UserID) (*UserSummary, error) {
	summary := &UserSummary{ID: requested, Email: r.Email, Role: id.RoleMember}
	if r.ID != "" {
		parsed, err := id.ParseUserID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("directory returned malformed id: %w", err)
		}
		if parsed != requested {
			return nil, errors.New("directory returned a different user")
		}
	}
	if r.TenantID != "" {
		if tenantID, err := id.ParseTenantID(r.TenantID); err == nil {
			summary.TenantID = tenantID
		}
	}
	if role, ok := id.ParseRole(r.Role); ok {
		summary.Role = role
	} else if r.IsOwner != nil && *r.IsOwner {
		summary.Role = id.RoleOwner
	}
	return summary, nil
}
