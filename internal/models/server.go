// Package models defines GORM data models for OpenFleet.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServerStatus represents the declared lifecycle state of a VPS.
type ServerStatus string

const (
	StatusActive      ServerStatus = "ACTIVE"
	StatusInactive    ServerStatus = "INACTIVE"
	StatusMaintenance ServerStatus = "MAINTENANCE"
	StatusUnknown     ServerStatus = "UNKNOWN"
)

// Valid reports whether s is one of the four defined statuses.
func (s ServerStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusUnknown:
		return true
	}
	return false
}

// Server represents one managed VPS instance.
// Credentials (Username/Password/PrivateKey) are optional and are only
// ever exposed to callers whose access grant allows it.
type Server struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"not null;index" json:"name"`
	IP      string `gorm:"not null;index" json:"ip"`
	Domain  *string `json:"domain,omitempty"`
	Country string `gorm:"size:2" json:"country"`

	Username   *string `json:"-"`
	Password   *string `json:"-"`
	PrivateKey *string `json:"-"`

	// Status starts at UNKNOWN and is re-derived on every probe.
	Status      ServerStatus `gorm:"default:'UNKNOWN'" json:"status"`
	LastChecked *time.Time   `json:"last_checked,omitempty"`

	HealthMetrics []HealthMetric `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SpeedTests    []SpeedTest    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserAccess    []ServerAccess `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (s *Server) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusUnknown
	}
	return nil
}
