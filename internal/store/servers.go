package store

import (
	"context"
	"errors"
	"time"

	"github.com/vesaa/openfleet/internal/models"
	"gorm.io/gorm"
)

// CreateServer inserts a new server record. Status starts at UNKNOWN
// unless the caller set one explicitly.
func (s *Store) CreateServer(ctx context.Context, srv *models.Server) error {
	return s.db.WithContext(ctx).Create(srv).Error
}

// GetServer returns one server by ID.
func (s *Store) GetServer(ctx context.Context, id string) (*models.Server, error) {
	var srv models.Server
	if err := s.db.WithContext(ctx).First(&srv, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &srv, nil
}

// ListServers returns all servers ordered by name.
func (s *Store) ListServers(ctx context.Context) ([]models.Server, error) {
	var servers []models.Server
	if err := s.db.WithContext(ctx).Order("name asc").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

// ServerUpdate holds the admin-editable server fields. Nil pointers are
// left untouched. The nullable columns take a pointer-to-pointer so a
// set field can also clear the column: outer nil leaves it alone, inner
// nil writes NULL.
type ServerUpdate struct {
	Name       *string
	IP         *string
	Domain     **string
	Country    *string
	Username   **string
	Password   **string
	PrivateKey **string
	Status     *models.ServerStatus
}

// UpdateServer applies an admin edit and returns the updated record.
func (s *Store) UpdateServer(ctx context.Context, id string, upd ServerUpdate) (*models.Server, error) {
	srv, err := s.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.IP != nil {
		fields["ip"] = *upd.IP
	}
	// For the nullable columns the map value is a *string; gorm writes
	// NULL when it is nil.
	if upd.Domain != nil {
		fields["domain"] = *upd.Domain
	}
	if upd.Country != nil {
		fields["country"] = *upd.Country
	}
	if upd.Username != nil {
		fields["username"] = *upd.Username
	}
	if upd.Password != nil {
		fields["password"] = *upd.Password
	}
	if upd.PrivateKey != nil {
		fields["private_key"] = *upd.PrivateKey
	}
	if upd.Status != nil {
		fields["status"] = *upd.Status
	}
	if len(fields) == 0 {
		return srv, nil
	}

	if err := s.db.WithContext(ctx).Model(srv).Updates(fields).Error; err != nil {
		return nil, err
	}
	return s.GetServer(ctx, id)
}

// UpdateServerStatus records the outcome of a probe: new status plus
// the last-checked timestamp. Status races between concurrent fleet
// runs are last-writer-wins; the next probe re-derives it anyway.
func (s *Store) UpdateServerStatus(ctx context.Context, id string, status models.ServerStatus, checkedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Server{}).Where("id = ?", id).Updates(map[string]any{
		"status":       status,
		"last_checked": checkedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertServerByName creates the server if the name is unknown,
// otherwise leaves the existing record alone. Used by the seed command.
func (s *Store) UpsertServerByName(ctx context.Context, srv *models.Server) (created bool, err error) {
	var existing models.Server
	err = s.db.WithContext(ctx).First(&existing, "name = ?", srv.Name).Error
	if err == nil {
		*srv = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return true, s.db.WithContext(ctx).Create(srv).Error
}

// DeleteServer removes a server and cascades its owned child records
// (access grants, health metrics, speed tests).
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Server{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		// SQLite does not always enforce FK cascades; delete explicitly.
		if err := tx.Delete(&models.ServerAccess{}, "server_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.HealthMetric{}, "server_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.SpeedTest{}, "server_id = ?", id).Error
	})
}
