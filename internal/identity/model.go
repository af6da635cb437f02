package identity

import "strings"

// Role is the account's access level. Exactly one is set once authenticated.
type Role string

const (
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	default:
		return false
	}
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// Identity is the authenticated user's profile as cached on the device.
type Identity struct {
	ID        string  `json:"id"`
	Phone     string  `json:"phone"`
	Role      Role    `json:"role"`
	Name      *string `json:"name,omitempty"`
	IsNewUser bool    `json:"isNewUser"`
	Token     string  `json:"token"`
}

// Complete reports whether every field required for an authenticated
// session is present. Name and IsNewUser are optional.
func (i *Identity) Complete() bool {
	if i == nil {
		return false
	}
	return i.ID != "" && i.Phone != "" && i.Role.IsValid() && i.Token != ""
}

// HasName reports whether a non-blank display name is set.
func (i *Identity) HasName() bool {
	return i != nil && i.Name != nil && strings.TrimSpace(*i.Name) != ""
}

// DisplayName returns the name or an empty string when absent.
func (i *Identity) DisplayName() string {
	if !i.HasName() {
		return ""
	}
	return *i.Name
}

// NeedsName is the onboarding name-completion trigger: a new USER account
// that has not provided a name yet.
func (i *Identity) NeedsName() bool {
	return i != nil && i.IsNewUser && i.Role == RoleUser && !i.HasName()
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.Name != nil {
		name := *i.Name
		out.Name = &name
	}
	return &out
}

// StringPtr is a convenience for populating optional fields.
func StringPtr(s string) *string {
	return &s
}
