// Package fleet implements the OpenFleet polling and aggregation
// engine: access resolution, agent probing, health scoring, status
// transitions and fleet-run orchestration.
//
// The engine holds no ambient session state. Every operation takes an
// explicit Caller; the HTTP layer resolves the caller once per request
// and passes it down.
package fleet

import (
	"errors"

	"github.com/vesaa/openfleet/internal/models"
)

// ErrPermissionDenied is returned when a caller lacks the capability an
// operation requires. The HTTP layer maps it to 403.
var ErrPermissionDenied = errors.New("permission denied")

// Caller identifies who is driving an engine operation.
type Caller struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the caller bypasses per-server access checks.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// SystemCaller is the identity used by unattended scheduled runs.
var SystemCaller = Caller{ID: "system", Role: models.RoleAdmin}
