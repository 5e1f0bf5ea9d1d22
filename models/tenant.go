package models

import "strings"

// TenantRef is an optional tenant identifier. The zero value is the system scope.
type TenantRef struct {
	id    string
	valid bool
}

// SystemScope returns the tenant-less scope.
func SystemScope() TenantRef { return TenantRef{} }

// ForTenant returns the scope of the given tenant; a blank id yields the system scope.
func ForTenant(id string) TenantRef {
	id = strings.TrimSpace(id)
	if id == "" {
		return TenantRef{}
	}
	return TenantRef{id: id, valid: true}
}

// TenantFromPtr converts a nullable column value to a TenantRef.
func TenantFromPtr(id *string) TenantRef {
	if id == nil {
		return TenantRef{}
	}
	return ForTenant(*id)
}

// IsSet reports whether the scope names a tenant.
func (t TenantRef) IsSet() bool { return t.valid }

// ID returns the tenant id, or "" for the system scope.
func (t TenantRef) ID() string { return t.id }

// Ptr returns the nullable column value for the scope.
func (t TenantRef) Ptr() *string {
	if !t.valid {
		return nil
	}
	id := t.id
	return &id
}

// CacheSegment renders the scope for cache keys and rollout hashing.
func (t TenantRef) CacheSegment() string {
	if !t.valid {
		return "system"
	}
	return t.id
}

func (t TenantRef) String() string { return t.CacheSegment() }
