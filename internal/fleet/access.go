package fleet

import (
	"context"
	"errors"

	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
)

// AccessStore is the slice of the persistence layer the resolver needs.
// Defined here (consumer-side) so tests can substitute fakes.
type AccessStore interface {
	ListAccessByUser(ctx context.Context, userID string) ([]models.ServerAccess, error)
	GetAccessFor(ctx context.Context, userID, serverID string) (*models.ServerAccess, error)
}

// Resolver computes which servers a caller may see and what they may do
// with each. Admins see every server with full permissions; regular
// users see exactly the servers they hold an access grant for.
type Resolver struct {
	access AccessStore
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(access AccessStore, logger *zap.Logger) *Resolver {
	return &Resolver{access: access, logger: logger}
}

// Resolve returns the permission record per visible server. Servers
// without a grant are absent from the result entirely, not present with
// all-false flags.
//
// A grant-store failure degrades a regular user to no access rather
// than failing the request; admins never hit the grant store.
func (r *Resolver) Resolve(ctx context.Context, caller Caller, servers []models.Server) (map[string]models.Permissions, error) {
	perms := make(map[string]models.Permissions, len(servers))

	if caller.IsAdmin() {
		for _, srv := range servers {
			perms[srv.ID] = models.AdminPermissions()
		}
		return perms, nil
	}

	grants, err := r.access.ListAccessByUser(ctx, caller.ID)
	if err != nil {
		r.logger.Warn("access lookup failed; degrading to no access",
			zap.String("user_id", caller.ID),
			zap.Error(err),
		)
		return perms, nil
	}

	granted := make(map[string]models.Permissions, len(grants))
	for _, g := range grants {
		granted[g.ServerID] = g.Permissions()
	}
	for _, srv := range servers {
		if p, ok := granted[srv.ID]; ok {
			perms[srv.ID] = p
		}
	}
	return perms, nil
}

// ResolveServer resolves the caller's permissions on a single server.
// ok is false when the caller has no grant for it: an explicit grant is
// required everywhere, for detail fetches the same as for list views.
func (r *Resolver) ResolveServer(ctx context.Context, caller Caller, serverID string) (models.Permissions, bool, error) {
	if caller.IsAdmin() {
		return models.AdminPermissions(), true, nil
	}

	grant, err := r.access.GetAccessFor(ctx, caller.ID, serverID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("access lookup failed; degrading to no access",
				zap.String("user_id", caller.ID),
				zap.String("server_id", serverID),
				zap.Error(err),
			)
		}
		return models.Permissions{}, false, nil
	}
	return grant.Permissions(), true, nil
}
