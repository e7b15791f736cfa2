package auth

// Role names understood by the permission model. The first four form a
// hierarchy: owner over admin over editor over member, each inheriting
// everything below it.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleMember = "member"

	// RoleEnterprise marks a credential accepted by an enterprise
	// deployment. Informational; it grants nothing beyond community.
	RoleEnterprise = "enterprise"

	// RoleOAuth2User marks identities resolved from a bearer token.
	RoleOAuth2User = "oauth2-user"
)

// Capability names a single gate in the capability vector.
type Capability string

const (
	CapCommunity   Capability = "community"
	CapEnterprise  Capability = "enterprise"
	CapWorkflows   Capability = "workflows"
	CapExecutions  Capability = "executions"
	CapCredentials Capability = "credentials"
	CapUsers       Capability = "users"
	CapAudit       Capability = "audit"
)

// Capabilities is the fixed vector of gates attached to an identity.
// A successful authentication always populates the whole vector.
type Capabilities struct {
	Community   bool
	Enterprise  bool
	Workflows   bool
	Executions  bool
	Credentials bool
	Users       bool
	Audit       bool
}

// Has reports whether the named capability is granted. Unknown names
// are never granted.
func (c Capabilities) Has(name Capability) bool {
	switch name {
	case CapCommunity:
		return c.Community
	case CapEnterprise:
		return c.Enterprise
	case CapWorkflows:
		return c.Workflows
	case CapExecutions:
		return c.Executions
	case CapCredentials:
		return c.Credentials
	case CapUsers:
		return c.Users
	case CapAudit:
		return c.Audit
	}
	return false
}

// BackendCredential is the credential pair an identity authenticated
// with, carried so Refresh can locate the matching cache entry.
type BackendCredential struct {
	BaseURL string
	APIKey  string
}

// User is an authenticated principal.
type User struct {
	// ID is the unique identifier.
	ID string

	Name  string
	Email string

	// Roles assigned to this user.
	Roles []string

	// Capabilities derived from Roles via DerivePermissions.
	Capabilities Capabilities

	// Credential is the backend credential this user authenticated
	// with, when credential authentication was used.
	Credential *BackendCredential
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AnonymousUser is the synthetic identity returned when authentication
// is not required: community, workflows and executions only.
func AnonymousUser() *User {
	return &User{
		ID: "anonymous",
		Capabilities: Capabilities{
			Community:  true,
			Workflows:  true,
			Executions: true,
		},
	}
}
