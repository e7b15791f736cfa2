package auth

import "strings"

// DerivePermissions maps a role set to its capability vector.
//
// The hierarchy is owner over admin over editor over member, each tier
// inheriting every lower tier's grants. Community is unconditional for
// any authenticated identity; enterprise, users and audit require admin
// or owner; credentials requires editor or above; workflows and
// executions require member or above.
func DerivePermissions(roles []string) Capabilities {
	caps := Capabilities{Community: true}
	for _, role := range roles {
		switch role {
		case RoleOwner, RoleAdmin:
			caps.Enterprise = true
			caps.Users = true
			caps.Audit = true
			fallthrough
		case RoleEditor:
			caps.Credentials = true
			fallthrough
		case RoleMember:
			caps.Workflows = true
			caps.Executions = true
		}
	}
	return caps
}

// toolCapabilities maps tool names to the capability required to invoke
// them. Tools absent from the table require only community.
var toolCapabilities = map[string]Capability{
	"list_workflows":      CapWorkflows,
	"get_workflow":        CapWorkflows,
	"create_workflow":     CapWorkflows,
	"update_workflow":     CapWorkflows,
	"delete_workflow":     CapWorkflows,
	"activate_workflow":   CapWorkflows,
	"deactivate_workflow": CapWorkflows,

	"list_executions":  CapExecutions,
	"get_execution":    CapExecutions,
	"delete_execution": CapExecutions,
	"retry_execution":  CapExecutions,

	"list_credentials":  CapCredentials,
	"create_credential": CapCredentials,
	"delete_credential": CapCredentials,

	"list_users":  CapUsers,
	"create_user": CapUsers,
	"delete_user": CapUsers,

	"generate_audit": CapAudit,

	"list_projects":  CapEnterprise,
	"create_project": CapEnterprise,
	"delete_project": CapEnterprise,
}

// resourceCapabilities maps the first path segment of a resource URI to
// the capability required to read it. Unmatched segments require only
// community.
var resourceCapabilities = map[string]Capability{
	"workflows":   CapWorkflows,
	"executions":  CapExecutions,
	"credentials": CapCredentials,
	"users":       CapUsers,
	"projects":    CapEnterprise,
}

// CanAccessTool reports whether the request's resolved user may invoke
// the named tool. Requests without a resolved user are always denied;
// unknown tool names require only community.
func CanAccessTool(name string, req *AuthRequest) bool {
	if req == nil || req.User == nil {
		return false
	}
	required, ok := toolCapabilities[name]
	if !ok {
		required = CapCommunity
	}
	return req.User.Capabilities.Has(required)
}

// CanAccessResource reports whether the request's resolved user may
// read the resource at uri. The capability is keyed by the URI's first
// path segment after any scheme; unmatched prefixes require only
// community.
func CanAccessResource(uri string, req *AuthRequest) bool {
	if req == nil || req.User == nil {
		return false
	}
	required, ok := resourceCapabilities[resourcePrefix(uri)]
	if !ok {
		required = CapCommunity
	}
	return req.User.Capabilities.Has(required)
}

func resourcePrefix(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+3:]
	}
	uri = strings.TrimPrefix(uri, "/")
	if i := strings.IndexByte(uri, '/'); i >= 0 {
		uri = uri[:i]
	}
	return uri
}
