package store

import (
	"context"

	"github.com/vesaa/openfleet/internal/models"
)

// CreateAccess inserts a new access grant. A second grant for the same
// (user, server) pair is rejected with ErrDuplicateGrant.
func (s *Store) CreateAccess(ctx context.Context, a *models.ServerAccess) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ServerAccess{}).
		Where("user_id = ? AND server_id = ?", a.UserID, a.ServerID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateGrant
	}
	return s.db.WithContext(ctx).Create(a).Error
}

// GetAccess returns one grant by ID with its user and server preloaded.
func (s *Store) GetAccess(ctx context.Context, id string) (*models.ServerAccess, error) {
	var a models.ServerAccess
	err := s.db.WithContext(ctx).Preload("User").Preload("Server").First(&a, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// GetAccessFor returns the grant for one (user, server) pair, or
// ErrNotFound when the user has no grant on that server.
func (s *Store) GetAccessFor(ctx context.Context, userID, serverID string) (*models.ServerAccess, error) {
	var a models.ServerAccess
	err := s.db.WithContext(ctx).First(&a, "user_id = ? AND server_id = ?", userID, serverID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAccess returns all grants with users and servers preloaded
// (admin overview).
func (s *Store) ListAccess(ctx context.Context) ([]models.ServerAccess, error) {
	var grants []models.ServerAccess
	err := s.db.WithContext(ctx).Preload("User").Preload("Server").Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// ListAccessByUser returns all grants held by one user.
func (s *Store) ListAccessByUser(ctx context.Context, userID string) ([]models.ServerAccess, error) {
	var grants []models.ServerAccess
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// AccessUpdate holds the editable capability flags. Nil pointers are
// left untouched.
type AccessUpdate struct {
	CanViewPassword   *bool
	CanViewPrivateKey *bool
	CanRunSpeedTest   *bool
	CanRunHealthCheck *bool
}

// UpdateAccess edits the capability flags on one grant.
func (s *Store) UpdateAccess(ctx context.Context, id string, upd AccessUpdate) (*models.ServerAccess, error) {
	a, err := s.GetAccess(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.CanViewPassword != nil {
		fields["can_view_password"] = *upd.CanViewPassword
	}
	if upd.CanViewPrivateKey != nil {
		fields["can_view_private_key"] = *upd.CanViewPrivateKey
	}
	if upd.CanRunSpeedTest != nil {
		fields["can_run_speed_test"] = *upd.CanRunSpeedTest
	}
	if upd.CanRunHealthCheck != nil {
		fields["can_run_health_check"] = *upd.CanRunHealthCheck
	}
	if len(fields) > 0 {
		if err := s.db.WithContext(ctx).Model(a).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return s.GetAccess(ctx, id)
}

// DeleteAccess removes one grant by ID.
func (s *Store) DeleteAccess(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.ServerAccess{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
