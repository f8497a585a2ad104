package privacy

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/predicate"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

// viewerCtxKey is the context key for storing the viewer.
type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
// Use this for testing or simple use cases.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present in the context.
// This is typically used as the first rule in a policy to require authentication.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("velograph/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the specified role.
// Skips if the viewer doesn't have the role (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasRole(role string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.Contains(viewer.GetRoles(), role) {
			return Allow
		}
		return Skip
	})
}

// HasAnyRole returns a rule that allows access if the viewer has any of the specified roles.
// Skips if the viewer doesn't have any of the roles (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasAnyRole("admin", "moderator"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a mutation rule that allows access if the viewer owns the
// node. A creation is allowed when field holds the viewer's ID. Updates and
// deletions not writing field are narrowed to the nodes whose field holds
// the viewer's ID, then allowed.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("owner"),
//	    privacy.AlwaysDenyRule(),
//	)
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m velograph.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			if narrowable(m) {
				m.Where(predicate.Filter{field: viewer.GetID()})
				return Allow
			}
			return Skip
		}
		if stringOf(value) == viewer.GetID() {
			return Allow
		}
		return Skip
	})
}

// OwnerQueryRule returns a query rule narrowing queries to the nodes whose
// field holds the viewer's ID. It denies queries without a viewer.
//
// Example:
//
//	policy.Query(
//	    privacy.OwnerQueryRule("owner"),
//	)
func OwnerQueryRule(field string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q velograph.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("velograph/privacy: viewer required for owner-filtered query")
		}
		q.Where(predicate.Filter{field: viewer.GetID()})
		return Skip
	})
}

// TenantRule returns a mutation rule that allows access if the viewer's tenant
// matches the node's tenant. Used for multi-tenant isolation. Updates and
// deletions not writing field are narrowed to the viewer's tenant.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.TenantRule("tenant"),
//	    privacy.AlwaysDenyRule(),
//	)
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m velograph.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		tenant := viewer.GetTenantID()
		if tenant == "" {
			return Skip
		}
		value, ok := m.Field(field)
		if !ok {
			if narrowable(m) {
				m.Where(predicate.Filter{field: tenant})
				return Allow
			}
			return Skip
		}
		if stringOf(value) == tenant {
			return Allow
		}
		return Denyf("velograph/privacy: tenant mismatch")
	})
}

// TenantQueryRule returns a query rule narrowing queries to the viewer's
// tenant. It denies queries without a viewer or a tenant.
//
// Example:
//
//	policy.Query(
//	    privacy.TenantQueryRule("tenant"),
//	)
func TenantQueryRule(field string) QueryRule {
	return QueryRuleFunc(func(ctx context.Context, q velograph.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("velograph/privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("velograph/privacy: tenant required")
		}
		q.Where(predicate.Filter{field: viewer.GetTenantID()})
		return Skip
	})
}

// AllowMutationOperationRule returns a rule allowing specified mutation operation.
func AllowMutationOperationRule(op velograph.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, _ velograph.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// narrowable reports whether m selects existing nodes through a filter.
func narrowable(m velograph.Mutation) bool {
	return m.Op().Is(velograph.OpUpdate | velograph.OpDelete)
}

func stringOf(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
