package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServerAccess grants one user a set of capabilities on one server.
// Unique per (UserID, ServerID); created and mutated only by admins.
//
// Capability columns are nullable so that rows written before a column
// existed (e.g. freshly migrated data) fall back to the per-field
// default: the two "view secret" flags default to false, the two "run"
// flags default to true.
type ServerAccess struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   string `gorm:"uniqueIndex:idx_user_server;not null;size:36" json:"user_id"`
	ServerID string `gorm:"uniqueIndex:idx_user_server;not null;size:36" json:"server_id"`

	CanViewPassword   *bool `gorm:"default:false" json:"can_view_password"`
	CanViewPrivateKey *bool `gorm:"default:false" json:"can_view_private_key"`
	CanRunSpeedTest   *bool `gorm:"default:true" json:"can_run_speed_test"`
	CanRunHealthCheck *bool `gorm:"default:true" json:"can_run_health_check"`

	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Server *Server `gorm:"foreignKey:ServerID" json:"server,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (a *ServerAccess) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Permissions is the resolved capability set for one caller on one server.
type Permissions struct {
	ViewPassword   bool `json:"can_view_password"`
	ViewPrivateKey bool `json:"can_view_private_key"`
	RunSpeedTest   bool `json:"can_run_speed_test"`
	RunHealthCheck bool `json:"can_run_health_check"`
}

// AdminPermissions returns the all-true capability set.
func AdminPermissions() Permissions {
	return Permissions{
		ViewPassword:   true,
		ViewPrivateKey: true,
		RunSpeedTest:   true,
		RunHealthCheck: true,
	}
}

// Permissions resolves the grant's capability flags, applying the
// per-field default for any column that was never set.
func (a ServerAccess) Permissions() Permissions {
	return Permissions{
		ViewPassword:   boolOr(a.CanViewPassword, false),
		ViewPrivateKey: boolOr(a.CanViewPrivateKey, false),
		RunSpeedTest:   boolOr(a.CanRunSpeedTest, true),
		RunHealthCheck: boolOr(a.CanRunHealthCheck, true),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
