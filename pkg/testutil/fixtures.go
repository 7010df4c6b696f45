package testutil

import (
	"github.com/google/uuid"

	id "agenda/pkg/domain"
)

// TestIDs provides pre-generated IDs for deterministic test data.
var TestIDs = struct {
	TenantA id.TenantID
	TenantB id.TenantID
	Alice   id.UserID
	Bob     id.UserID
	Carol   id.UserID
	Mallory id.UserID
}{
	TenantA: id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000001")),
	TenantB: id.TenantID(uuid.MustParse("aaaa0000-0000-0000-0000-000000000002")),
	Alice:   id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	Bob:     id.UserID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	Carol:   id.UserID(uuid.MustParse("33333333-3333-3333-3333-333333333333")),
	Mallory: id.UserID(uuid.MustParse("44444444-4444-4444-4444-444444444444")),
}

// Principal builds a member principal for tests.
func Principal(tenant id.TenantID, user id.UserID) id.Principal {
	return id.Principal{UserID: user, TenantID: tenant, Role: id.RoleMember, Credential: "token-" + user.String()}
}

// Owner builds an owner principal for tests.
func Owner(tenant id.TenantID, user id.UserID) id.Principal {
	p := Principal(tenant, user)
	p.Role = id.RoleOwner
	return p
}
