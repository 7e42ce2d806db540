package store

import (
	"context"

	"github.com/vesaa/openfleet/internal/models"
)

// AppendHealthMetric persists one immutable health reading.
func (s *Store) AppendHealthMetric(ctx context.Context, m *models.HealthMetric) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// AppendSpeedTest persists one immutable speed-test result.
func (s *Store) AppendSpeedTest(ctx context.Context, st *models.SpeedTest) error {
	return s.db.WithContext(ctx).Create(st).Error
}

// ListHealthMetrics returns the newest readings for a server, most
// recent first. limit <= 0 returns the full history.
func (s *Store) ListHealthMetrics(ctx context.Context, serverID string, limit int) ([]models.HealthMetric, error) {
	q := s.db.WithContext(ctx).Where("server_id = ?", serverID).Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.HealthMetric
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSpeedTests returns the newest results for a server, most recent
// first. limit <= 0 returns the full history.
func (s *Store) ListSpeedTests(ctx context.Context, serverID string, limit int) ([]models.SpeedTest, error) {
	q := s.db.WithContext(ctx).Where("server_id = ?", serverID).Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.SpeedTest
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
