package auth

import (
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
)

// Capability is what the caller proved about itself, asserted by the
// identity layer (a verified token) rather than looked up here.
type Capability struct {
	UserID uuid.UUID
	Admin  bool
}

// RequireAdmin fails with Unauthorized unless the capability carries the
// admin role.
func (c Capability) RequireAdmin() error {
	if !c.Admin {
		return errs.Unauthorized(errs.CodeAdminRequired, "admin capability required")
	}
	return nil
}

// System is used by operator tooling and scheduled jobs.
func System() Capability {
	return Capability{Admin: true}
}
