package store

import (
	"context"
	"errors"

	"github.com/vesaa/openfleet/internal/models"
	"gorm.io/gorm"
)

// CreateUser inserts a new account. Email must be unique.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrEmailTaken
	}
	return s.db.WithContext(ctx).Create(u).Error
}

// GetUser returns one user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByEmail returns one user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListUsers returns all accounts ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountAdmins returns the number of ADMIN accounts.
func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error
	return count, err
}

// UserUpdate holds the editable account fields. Nil pointers are left
// untouched. HashedPassword must already be hashed by the caller.
type UserUpdate struct {
	Name           *string
	Email          *string
	HashedPassword *string
	Role           *models.Role
}

// UpdateUser applies an account edit. Downgrading the sole remaining
// admin is rejected with ErrLastAdmin and leaves the record unchanged.
func (s *Store) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	var out *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		if upd.Role != nil && u.Role == models.RoleAdmin && *upd.Role != models.RoleAdmin {
			var admins int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		fields := map[string]any{}
		if upd.Name != nil {
			fields["name"] = *upd.Name
		}
		if upd.Email != nil {
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", *upd.Email, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrEmailTaken
			}
			fields["email"] = *upd.Email
		}
		if upd.HashedPassword != nil {
			fields["hashed_password"] = *upd.HashedPassword
		}
		if upd.Role != nil {
			fields["role"] = *upd.Role
		}
		if len(fields) > 0 {
			if err := tx.Model(&u).Updates(fields).Error; err != nil {
				return err
			}
		}

		out = &u
		return tx.First(out, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes an account and its access grants. Deleting the
// sole remaining admin is rejected with ErrLastAdmin.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.First(&u, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		if u.Role == models.RoleAdmin {
			var admins int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		if err := tx.Delete(&models.ServerAccess{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
}

// UpsertUserByEmail creates the user if the email is unknown, otherwise
// leaves the existing record alone. Used by the seed command.
func (s *Store) UpsertUserByEmail(ctx context.Context, u *models.User) (created bool, err error) {
	existing, err := s.GetUserByEmail(ctx, u.Email)
	if err == nil {
		*u = *existing
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	return true, s.db.WithContext(ctx).Create(u).Error
}
