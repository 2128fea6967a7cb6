package shared

import "errors"

var (
	// ErrTenantMismatch indicates a referenced entity belongs to another tenant.
	ErrTenantMismatch = errors.New("entity belongs to a different tenant")
	// ErrActorMissing occurs when a request carries no tenant/user identity.
	ErrActorMissing = errors.New("actor missing from request context")
)
