package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/testutil"
)

func TestHTTPClientFetchUser(t *testing.T) {
	alice := testutil.TestIDs.Alice
	tenant := testutil.TestIDs.TenantA

	t.Run("forwards bearer credential and decodes user", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/"+alice.String(), r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"` + alice.String() + `","tenant_id":"` + tenant.String() + `","email":"alice@example.com","role":"owner"}`))
		}))
		defer srv.Close()

		user, err := NewHTTPClient(srv.URL+"/", srv.Client()).FetchUser(context.Background(), alice, "secret")
		require.NoError(t, err)
		assert.Equal(t, alice, user.ID)
		assert.Equal(t, tenant, user.TenantID)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, id.RoleOwner, user.Role)
	})

	t.Run("is_owner flag sets role when role is absent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"email":"alice@example.com","is_owner":true}`))
		}))
		defer srv.Close()

		user, err := NewHTTPClient(srv.URL, nil).FetchUser(context.Background(), alice, "secret")
		require.NoError(t, err)
		assert.Equal(t, id.RoleOwner, user.Role)
	})

	t.Run("404 maps to not found sentinel", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, nil).FetchUser(context.Background(), alice, "secret")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("5xx returns upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, nil).FetchUser(context.Background(), alice, "secret")
		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, http.StatusBadGateway, upstream.Status)
	})

	t.Run("mismatched id is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":"` + testutil.TestIDs.Bob.String() + `","email":"bob@example.com"}`))
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, nil).FetchUser(context.Background(), alice, "secret")
		assert.Error(t, err)
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		_, err := NewHTTPClient(srv.URL, nil).FetchUser(context.Background(), alice, "secret")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrNotFound)
	})
}
