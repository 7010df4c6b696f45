package domain

// Role is a caller's standing inside their tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleMember
}

// ParseRole accepts the canonical role names. Anything else is rejected
// so a forged or stale claim cannot silently downgrade to member.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// Principal is the authenticated caller, derived only from a verified token.
// Credential is the raw bearer token, forwarded to the identity directory.
type Principal struct {
	UserID     UserID
	TenantID   TenantID
	Role       Role
	Credential string
}

func (p Principal) IsOwner() bool { return p.Role == RoleOwner }

// CanActFor reports whether the principal may read data belonging to userID.
func (p Principal) CanActFor(userID UserID) bool {
	return p.UserID == userID || p.IsOwner()
}
