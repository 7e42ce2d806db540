package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HealthMetric is one append-only health reading for a server.
// Rows are immutable once written and retained indefinitely.
type HealthMetric struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ServerID  string    `gorm:"index;not null;size:36" json:"server_id"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`

	CPUUsage    *float64 `json:"cpu_usage"`    // percent 0-100
	MemoryUsage *float64 `json:"memory_usage"` // percent 0-100
	DiskUsage   *float64 `json:"disk_usage"`   // percent 0-100

	// Uptime carries the composite 0-100 health score. The column name
	// is historical; the original schema repurposed it the same way.
	Uptime *float64 `json:"uptime"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (m *HealthMetric) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// SpeedTest is one append-only bandwidth measurement for a server.
type SpeedTest struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ServerID  string    `gorm:"index;not null;size:36" json:"server_id"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`

	DownloadSpeed float64 `json:"download_speed"` // Mbps
	UploadSpeed   float64 `json:"upload_speed"`   // Mbps
	Ping          float64 `json:"ping"`           // ms
}

// BeforeCreate assigns a UUID primary key when none is set.
func (st *SpeedTest) BeforeCreate(_ *gorm.DB) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	return nil
}
