package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vesaa/openfleet/internal/models"
	"go.uber.org/zap"
)

// ServerStore is the slice of the persistence layer the orchestrator
// needs. Defined here (consumer-side) so tests can substitute fakes.
type ServerStore interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	GetServer(ctx context.Context, id string) (*models.Server, error)
	UpdateServerStatus(ctx context.Context, id string, status models.ServerStatus, checkedAt time.Time) error
	AppendHealthMetric(ctx context.Context, m *models.HealthMetric) error
	AppendSpeedTest(ctx context.Context, st *models.SpeedTest) error
}

// AgentProber issues probes against per-server agents.
type AgentProber interface {
	Health(ctx context.Context, addr string) (*HealthReading, *ProbeError)
	SpeedTest(ctx context.Context, addr string) (*SpeedReading, *ProbeError)
}

// Summary aggregates one fleet run. Completed counts successful probes;
// Total counts every server the run attempted.
type Summary struct {
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Healthy     int    `json:"healthy"`
	Maintenance int    `json:"maintenance"`
	Inactive    int    `json:"inactive"`
	Message     string `json:"message"`
}

// Orchestrator fans probes out over the caller's accessible servers,
// folds results into history rows and status updates, and accumulates
// run statistics. Individual probe failures never abort a run.
type Orchestrator struct {
	servers  ServerStore
	resolver *Resolver
	prober   AgentProber
	workers  int
	logger   *zap.Logger
}

// NewOrchestrator creates an Orchestrator. workers bounds concurrent
// outbound probes; 1 processes servers strictly sequentially.
func NewOrchestrator(servers ServerStore, resolver *Resolver, prober AgentProber, workers int, logger *zap.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		servers:  servers,
		resolver: resolver,
		prober:   prober,
		workers:  workers,
		logger:   logger,
	}
}

// capability returns whether perms allow running a probe of this kind.
func capability(perms models.Permissions, kind ProbeKind) bool {
	if kind == KindSpeedTest {
		return perms.RunSpeedTest
	}
	return perms.RunHealthCheck
}

func runLabel(kind ProbeKind) string {
	if kind == KindSpeedTest {
		return "Speed test"
	}
	return "Health check"
}

// RunFleetCheck probes every server the caller may run this check on.
// Probe failures are folded into the summary, never raised; only
// caller-level failures (storage unavailable) return an error.
func (o *Orchestrator) RunFleetCheck(ctx context.Context, caller Caller, kind ProbeKind) (*Summary, error) {
	started := time.Now()

	servers, err := o.servers.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}

	perms, err := o.resolver.Resolve(ctx, caller, servers)
	if err != nil {
		return nil, fmt.Errorf("resolving access: %w", err)
	}

	targets := servers[:0:0]
	for _, srv := range servers {
		p, ok := perms[srv.ID]
		if ok && capability(p, kind) {
			targets = append(targets, srv)
		}
	}

	summary := &Summary{Total: len(targets)}
	if len(targets) == 0 {
		summary.Message = "No servers found"
		return summary, nil
	}

	// Semaphore-bounded fan-out. Each worker owns exactly one server;
	// counters are folded under the mutex.
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.workers)
	)
	for i := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(srv models.Server) {
			defer wg.Done()
			defer func() { <-sem }()

			status, ok := o.checkServer(ctx, &srv, kind)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				summary.Completed++
			}
			switch status {
			case models.StatusActive:
				summary.Healthy++
			case models.StatusMaintenance:
				summary.Maintenance++
			default:
				summary.Inactive++
			}
		}(targets[i])
	}
	wg.Wait()

	summary.Message = fmt.Sprintf("%s completed for %d of %d servers you have access to",
		runLabel(kind), summary.Completed, summary.Total)

	fleetRunDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	o.logger.Info("fleet run finished",
		zap.String("kind", string(kind)),
		zap.String("caller_id", caller.ID),
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("healthy", summary.Healthy),
		zap.Int("maintenance", summary.Maintenance),
		zap.Int("inactive", summary.Inactive),
		zap.Duration("elapsed", time.Since(started)),
	)
	return summary, nil
}

// checkServer probes one server, persists the outcome and returns the
// derived status plus whether the probe succeeded. Failures are
// isolated here: they are logged, recorded as INACTIVE and folded into
// the summary by the caller.
func (o *Orchestrator) checkServer(ctx context.Context, srv *models.Server, kind ProbeKind) (models.ServerStatus, bool) {
	var (
		outcome ProbeOutcome
		perr    *ProbeError
	)
	outcome.Kind = kind

	switch kind {
	case KindSpeedTest:
		var reading *SpeedReading
		reading, perr = o.prober.SpeedTest(ctx, srv.IP)
		if perr == nil {
			st := &models.SpeedTest{
				ServerID:      srv.ID,
				DownloadSpeed: reading.DownloadMbps,
				UploadSpeed:   reading.UploadMbps,
				Ping:          reading.PingMs,
			}
			if err := o.servers.AppendSpeedTest(ctx, st); err != nil {
				o.logger.Error("persisting speed test", zap.String("server_id", srv.ID), zap.Error(err))
			}
		}
	default:
		var reading *HealthReading
		reading, perr = o.prober.Health(ctx, srv.IP)
		if perr == nil {
			outcome.AgentStatus = reading.Status
			score := ScoreReading(reading)
			m := &models.HealthMetric{
				ServerID:    srv.ID,
				CPUUsage:    &reading.CPUUsage,
				MemoryUsage: &reading.RAMUsage,
				DiskUsage:   &reading.DiskUsage,
				Uptime:      &score,
			}
			if err := o.servers.AppendHealthMetric(ctx, m); err != nil {
				o.logger.Error("persisting health metric", zap.String("server_id", srv.ID), zap.Error(err))
			}
		}
	}

	observeProbe(kind, perr)
	if perr != nil {
		outcome.Failed = true
		o.logger.Warn("probe failed",
			zap.String("server_id", srv.ID),
			zap.String("ip", srv.IP),
			zap.String("kind", string(kind)),
			zap.String("reason", perr.Reason),
			zap.Error(perr.Err),
		)
	}

	status := NextStatus(srv.Status, outcome)
	if err := o.servers.UpdateServerStatus(ctx, srv.ID, status, time.Now().UTC()); err != nil {
		o.logger.Error("updating server status", zap.String("server_id", srv.ID), zap.Error(err))
	}
	return status, perr == nil
}

// RunHealthCheck runs the single-server health path. The capability is
// verified before any network traffic; a caller without it gets
// ErrPermissionDenied. Probe failures mark the server INACTIVE and are
// returned to the caller (the synchronous path surfaces them).
func (o *Orchestrator) RunHealthCheck(ctx context.Context, caller Caller, serverID string) (*models.HealthMetric, *HealthReading, error) {
	perms, ok, err := o.resolver.ResolveServer(ctx, caller, serverID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || !perms.RunHealthCheck {
		return nil, nil, ErrPermissionDenied
	}

	srv, err := o.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, nil, err
	}

	reading, perr := o.prober.Health(ctx, srv.IP)
	observeProbe(KindHealth, perr)
	if perr != nil {
		if uerr := o.servers.UpdateServerStatus(ctx, srv.ID, models.StatusInactive, time.Now().UTC()); uerr != nil {
			o.logger.Error("updating server status", zap.String("server_id", srv.ID), zap.Error(uerr))
		}
		return nil, nil, perr
	}

	score := ScoreReading(reading)
	m := &models.HealthMetric{
		ServerID:    srv.ID,
		CPUUsage:    &reading.CPUUsage,
		MemoryUsage: &reading.RAMUsage,
		DiskUsage:   &reading.DiskUsage,
		Uptime:      &score,
	}
	if err := o.servers.AppendHealthMetric(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("persisting health metric: %w", err)
	}

	status := NextStatus(srv.Status, ProbeOutcome{Kind: KindHealth, AgentStatus: reading.Status})
	if err := o.servers.UpdateServerStatus(ctx, srv.ID, status, time.Now().UTC()); err != nil {
		return nil, nil, fmt.Errorf("updating server status: %w", err)
	}
	return m, reading, nil
}

// RunSpeedTest runs the single-server speed-test path with the same
// capability pre-check as RunHealthCheck.
func (o *Orchestrator) RunSpeedTest(ctx context.Context, caller Caller, serverID string) (*models.SpeedTest, error) {
	perms, ok, err := o.resolver.ResolveServer(ctx, caller, serverID)
	if err != nil {
		return nil, err
	}
	if !ok || !perms.RunSpeedTest {
		return nil, ErrPermissionDenied
	}

	srv, err := o.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	reading, perr := o.prober.SpeedTest(ctx, srv.IP)
	observeProbe(KindSpeedTest, perr)
	if perr != nil {
		if uerr := o.servers.UpdateServerStatus(ctx, srv.ID, models.StatusInactive, time.Now().UTC()); uerr != nil {
			o.logger.Error("updating server status", zap.String("server_id", srv.ID), zap.Error(uerr))
		}
		return nil, perr
	}

	st := &models.SpeedTest{
		ServerID:      srv.ID,
		DownloadSpeed: reading.DownloadMbps,
		UploadSpeed:   reading.UploadMbps,
		Ping:          reading.PingMs,
	}
	if err := o.servers.AppendSpeedTest(ctx, st); err != nil {
		return nil, fmt.Errorf("persisting speed test: %w", err)
	}

	if err := o.servers.UpdateServerStatus(ctx, srv.ID, models.StatusActive, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("updating server status: %w", err)
	}
	return st, nil
}
