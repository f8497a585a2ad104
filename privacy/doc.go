// Package privacy provides the rules and policies evaluated by models before
// a statement reaches the database.
//
// # Core Concepts
//
// The privacy layer is built around three main concepts:
//
//   - Policy: A collection of rules that determine access to nodes
//   - Rule: A function that returns Allow, Deny, or Skip decisions
//   - Viewer: An interface representing the current user
//
// # Installing Policies
//
// Policies are installed on models. Wrap them with NewPolicies or Policies,
// which turn an Allow decision into the nil error models read as allowed:
//
//	Task.SetPolicy(privacy.Policies{privacy.Policy{
//	    Mutation: privacy.MutationPolicy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.IsOwner("owner"),
//	        privacy.AlwaysDenyRule(),
//	    },
//	    Query: privacy.QueryPolicy{
//	        privacy.OwnerQueryRule("owner"),
//	    },
//	}})
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: Grants access and stops evaluation
//   - Deny: Denies access and stops evaluation
//   - Skip: Continues to the next rule
//
// If all rules return Skip, the operation is allowed. End a chain with
// AlwaysDenyRule to deny by default.
//
// # Filtering
//
// Query rules and mutation rules may narrow the nodes an operation applies
// to instead of deciding. FilterFunc adapts a function receiving the
// operation filter:
//
//	privacy.FilterFunc(func(ctx context.Context, f privacy.Filter) error {
//	    f.Where(predicate.Filter{"archived": false})
//	    return privacy.Skip
//	})
//
// # Viewer Interface
//
// The Viewer interface represents the authenticated user:
//
//	type Viewer interface {
//	    GetID() string       // Unique user identifier
//	    GetRoles() []string  // User's roles
//	    GetTenantID() string // Tenant ID for multi-tenancy
//	}
//
// The viewer is stored in context and retrieved during policy evaluation:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "user-123",
//	    Roles:  []string{"user"},
//	})
//	tasks, err := Task.Find(ctx, nil)
//
// # Error Handling
//
// A denied operation fails with a *velograph.PrivacyError wrapping the
// decision:
//
//	if velograph.IsPrivacyError(err) && errors.Is(err, privacy.Deny) {
//	    ...
//	}
package privacy
