// Package mixin provides common mixin implementations for models.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Users are encouraged to create their own mixins tailored to their needs.
//
// Available mixins:
//   - CreateTime: Adds the created_at property
//   - UpdateTime: Adds the updated_at property, refreshed on every update
//   - Time: Combines CreateTime and UpdateTime
//   - SoftDelete: Adds the deleted flag and hides deleted nodes from finds
//   - TenantID: Adds the tenant property and isolates tenants
//   - TimeSoftDelete: Combines Time and SoftDelete
//
// Usage:
//
//	import "github.com/syssam/velograph/contrib/mixin"
//
//	Task.Mixin(mixin.Time{}, mixin.SoftDelete{})
//
// Custom mixins:
//
// For project-specific needs, define your own mixins:
//
//	type Audit struct{ mixin.Schema }
//
//	func (Audit) Hooks() []velograph.Hooks {
//	    return []velograph.Hooks{{
//	        BeforeCreate: func(ctx context.Context, p velograph.Props) (velograph.Props, error) {
//	            p["created_by"] = userFrom(ctx)
//	            return p, nil
//	        },
//	    }}
//	}
package mixin

import (
	"context"
	"errors"
	"time"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/predicate"
	"github.com/syssam/velograph/privacy"
)

// Property names written by the mixins.
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
	Deleted   = "deleted"
	DeletedAt = "deleted_at"
	Tenant    = "tenant"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func timestamp() any { return now() }

// Schema is the default implementation of velograph.Mixin. Embed it to
// implement only the methods a mixin needs.
type Schema struct{}

// Defaults of the mixin schema.
func (Schema) Defaults() velograph.Props { return nil }

// Hooks of the mixin schema.
func (Schema) Hooks() []velograph.Hooks { return nil }

var _ velograph.Mixin = (*Schema)(nil)

// CreateTime adds the created_at property, set at creation and never
// updated.
type CreateTime struct{ Schema }

// Defaults of the create time mixin.
func (CreateTime) Defaults() velograph.Props {
	return velograph.Props{CreatedAt: timestamp}
}

// Hooks of the create time mixin.
func (CreateTime) Hooks() []velograph.Hooks {
	return []velograph.Hooks{{BeforeUpdate: immutable(CreatedAt)}}
}

var _ velograph.Mixin = (*CreateTime)(nil)

// UpdateTime adds the updated_at property, refreshed on every update.
type UpdateTime struct{ Schema }

// Defaults of the update time mixin.
func (UpdateTime) Defaults() velograph.Props {
	return velograph.Props{UpdatedAt: timestamp}
}

// Hooks of the update time mixin.
func (UpdateTime) Hooks() []velograph.Hooks {
	return []velograph.Hooks{{
		BeforeUpdate: func(_ context.Context, f predicate.Filter, p velograph.Props) (predicate.Filter, velograph.Props, error) {
			if p == nil {
				p = make(velograph.Props)
			}
			p[UpdatedAt] = now()
			return f, p, nil
		},
	}}
}

var _ velograph.Mixin = (*UpdateTime)(nil)

// Time composes CreateTime and UpdateTime mixins.
//
// This is the most common mixin for tracking node timestamps.
type Time struct{ Schema }

// Defaults of the time mixin.
func (Time) Defaults() velograph.Props {
	return merge(CreateTime{}.Defaults(), UpdateTime{}.Defaults())
}

// Hooks of the time mixin.
func (Time) Hooks() []velograph.Hooks {
	return append(CreateTime{}.Hooks(), UpdateTime{}.Hooks()...)
}

var _ velograph.Mixin = (*Time)(nil)

// SoftDelete marks nodes as deleted instead of removing them. Created nodes
// get deleted=false and finds only match nodes not marked as deleted,
// unless their filter names the deleted property itself:
//
//	Task.Update(ctx, predicate.Filter{"guid": guid}, mixin.SoftDeleted())
//	Task.Find(ctx, predicate.Filter{mixin.Deleted: true}) // deleted nodes only
//
// Relation accessors and include queries apply the same filter to their
// destinations.
type SoftDelete struct{ Schema }

// Defaults of the soft delete mixin.
func (SoftDelete) Defaults() velograph.Props {
	return velograph.Props{Deleted: false}
}

// Hooks of the soft delete mixin.
func (SoftDelete) Hooks() []velograph.Hooks {
	return []velograph.Hooks{{
		BeforeFind: func(_ context.Context, f predicate.Filter) (predicate.Filter, error) {
			if _, ok := f[Deleted]; ok {
				return f, nil
			}
			f = f.Clone()
			if f == nil {
				f = make(predicate.Filter)
			}
			f[Deleted] = false
			return f, nil
		},
	}}
}

// SoftDeleted returns the properties marking a node as deleted.
func SoftDeleted() velograph.Props {
	return velograph.Props{Deleted: true, DeletedAt: now()}
}

var _ velograph.Mixin = (*SoftDelete)(nil)

// ErrNoTenant is returned when a node is created without a tenant and the
// context carries no viewer tenant.
var ErrNoTenant = errors.New("velograph/mixin: tenant required")

// TenantID adds the tenant property for multi-tenancy support. Created
// nodes take the tenant of the viewer in context when none is given, and
// the property can not be updated.
//
// The mixin also provides a policy isolating tenants: queries are narrowed
// to the viewer's tenant and mutations of other tenants are denied.
//
// Field overrides the property name, Tenant by default.
type TenantID struct {
	Schema
	Field string
}

func (t TenantID) field() string {
	if t.Field != "" {
		return t.Field
	}
	return Tenant
}

// Hooks of the TenantID mixin.
func (t TenantID) Hooks() []velograph.Hooks {
	field := t.field()
	return []velograph.Hooks{{
		BeforeCreate: func(ctx context.Context, p velograph.Props) (velograph.Props, error) {
			if v, ok := p[field]; ok && v != "" {
				return p, nil
			}
			viewer := privacy.ViewerFromContext(ctx)
			if viewer == nil || viewer.GetTenantID() == "" {
				return nil, ErrNoTenant
			}
			p[field] = viewer.GetTenantID()
			return p, nil
		},
		BeforeUpdate: immutable(field),
	}}
}

// Policy of the TenantID mixin.
func (t TenantID) Policy() velograph.Policy {
	field := t.field()
	return privacy.Policies{privacy.Policy{
		Query:    privacy.QueryPolicy{privacy.TenantQueryRule(field)},
		Mutation: privacy.MutationPolicy{privacy.TenantRule(field)},
	}}
}

var (
	_ velograph.Mixin        = (*TenantID)(nil)
	_ privacy.PolicyProvider = (*TenantID)(nil)
)

// TimeSoftDelete composes Time and SoftDelete mixins.
//
// This is useful for nodes that need a full audit trail with soft deletion.
type TimeSoftDelete struct{ Schema }

// Defaults of the TimeSoftDelete mixin.
func (TimeSoftDelete) Defaults() velograph.Props {
	return merge(Time{}.Defaults(), SoftDelete{}.Defaults())
}

// Hooks of the TimeSoftDelete mixin.
func (TimeSoftDelete) Hooks() []velograph.Hooks {
	return append(Time{}.Hooks(), SoftDelete{}.Hooks()...)
}

var _ velograph.Mixin = (*TimeSoftDelete)(nil)

// immutable returns an update hook dropping the property from the written
// properties.
func immutable(name string) func(context.Context, predicate.Filter, velograph.Props) (predicate.Filter, velograph.Props, error) {
	return func(_ context.Context, f predicate.Filter, p velograph.Props) (predicate.Filter, velograph.Props, error) {
		if _, ok := p[name]; ok {
			p = p.Clone()
			delete(p, name)
		}
		return f, p, nil
	}
}

func merge(ps ...velograph.Props) velograph.Props {
	out := make(velograph.Props)
	for _, p := range ps {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}
