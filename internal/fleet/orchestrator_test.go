package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vesaa/openfleet/internal/models"
	"github.com/vesaa/openfleet/internal/store"
	"go.uber.org/zap"
)

// fakeServerStore implements ServerStore in memory. Mutex-guarded
// because fleet runs update it from worker goroutines.
type fakeServerStore struct {
	mu       sync.Mutex
	servers  []models.Server
	statuses map[string]models.ServerStatus
	metrics  []models.HealthMetric
	tests    []models.SpeedTest
	listErr  error
}

func newFakeServerStore(servers ...models.Server) *fakeServerStore {
	return &fakeServerStore{servers: servers, statuses: make(map[string]models.ServerStatus)}
}

func (f *fakeServerStore) ListServers(context.Context) ([]models.Server, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.servers, nil
}

func (f *fakeServerStore) GetServer(_ context.Context, id string) (*models.Server, error) {
	for i := range f.servers {
		if f.servers[i].ID == id {
			srv := f.servers[i]
			return &srv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeServerStore) UpdateServerStatus(_ context.Context, id string, status models.ServerStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeServerStore) AppendHealthMetric(_ context.Context, m *models.HealthMetric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, *m)
	return nil
}

func (f *fakeServerStore) AppendSpeedTest(_ context.Context, st *models.SpeedTest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests = append(f.tests, *st)
	return nil
}

// fakeProber scripts per-address outcomes and records which addresses
// were probed.
type fakeProber struct {
	mu       sync.Mutex
	readings map[string]*HealthReading
	speeds   map[string]*SpeedReading
	probed   []string
}

func (f *fakeProber) record(addr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, addr)
}

func (f *fakeProber) probedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probed)
}

func (f *fakeProber) Health(_ context.Context, addr string) (*HealthReading, *ProbeError) {
	f.record(addr)
	if r, ok := f.readings[addr]; ok {
		return r, nil
	}
	return nil, &ProbeError{Kind: KindHealth, Addr: addr, Reason: ReasonConnection, Err: errors.New("refused")}
}

func (f *fakeProber) SpeedTest(_ context.Context, addr string) (*SpeedReading, *ProbeError) {
	f.record(addr)
	if r, ok := f.speeds[addr]; ok {
		return r, nil
	}
	return nil, &ProbeError{Kind: KindSpeedTest, Addr: addr, Reason: ReasonTimeout, Err: errors.New("timed out")}
}

func healthy() *HealthReading  { return &HealthReading{CPUUsage: 10, RAMUsage: 20, DiskUsage: 30, Status: "healthy"} }
func degraded() *HealthReading { return &HealthReading{CPUUsage: 95, RAMUsage: 95, DiskUsage: 95, Status: "degraded"} }

func adminCaller() Caller { return Caller{ID: "admin", Role: models.RoleAdmin} }

func newTestOrchestrator(fss *fakeServerStore, fas AccessStore, fp *fakeProber, workers int) *Orchestrator {
	return NewOrchestrator(fss, NewResolver(fas, zap.NewNop()), fp, workers, zap.NewNop())
}

func TestRunFleetCheckAggregatesMixedOutcomes(t *testing.T) {
	fss := newFakeServerStore(
		models.Server{ID: "s1", IP: "10.0.0.1"},
		models.Server{ID: "s2", IP: "10.0.0.2"},
		models.Server{ID: "s3", IP: "10.0.0.3"},
		models.Server{ID: "s4", IP: "10.0.0.4"},
	)
	fp := &fakeProber{readings: map[string]*HealthReading{
		"10.0.0.1": healthy(),
		"10.0.0.2": degraded(),
		"10.0.0.3": healthy(),
		// 10.0.0.4 fails
	}}
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, fp, 4)

	summary, err := orch.RunFleetCheck(context.Background(), adminCaller(), KindHealth)
	if err != nil {
		t.Fatalf("RunFleetCheck: %v", err)
	}

	if summary.Total != 4 || summary.Completed != 3 {
		t.Errorf("total/completed = %d/%d, want 4/3", summary.Total, summary.Completed)
	}
	if summary.Healthy != 2 || summary.Maintenance != 1 || summary.Inactive != 1 {
		t.Errorf("healthy/maintenance/inactive = %d/%d/%d, want 2/1/1",
			summary.Healthy, summary.Maintenance, summary.Inactive)
	}
	if want := "Health check completed for 3 of 4 servers you have access to"; summary.Message != want {
		t.Errorf("message = %q, want %q", summary.Message, want)
	}

	// Statuses were persisted for every attempted server.
	wantStatuses := map[string]models.ServerStatus{
		"s1": models.StatusActive,
		"s2": models.StatusMaintenance,
		"s3": models.StatusActive,
		"s4": models.StatusInactive,
	}
	for id, want := range wantStatuses {
		if got := fss.statuses[id]; got != want {
			t.Errorf("server %s status = %s, want %s", id, got, want)
		}
	}
	// One metric row per successful probe, none for the failure.
	if len(fss.metrics) != 3 {
		t.Errorf("persisted %d metrics, want 3", len(fss.metrics))
	}
}

func TestRunFleetCheckFiltersByCapability(t *testing.T) {
	fss := newFakeServerStore(
		models.Server{ID: "s1", IP: "10.0.0.1"},
		models.Server{ID: "s2", IP: "10.0.0.2"},
		models.Server{ID: "s3", IP: "10.0.0.3"},
	)
	// u1 holds grants on s1 (run allowed by default) and s2 (health
	// check explicitly revoked); no grant at all on s3.
	fas := &fakeAccessStore{grants: []models.ServerAccess{
		{UserID: "u1", ServerID: "s1"},
		{UserID: "u1", ServerID: "s2", CanRunHealthCheck: boolPtr(false)},
	}}
	fp := &fakeProber{readings: map[string]*HealthReading{"10.0.0.1": healthy()}}
	orch := newTestOrchestrator(fss, fas, fp, 2)

	summary, err := orch.RunFleetCheck(context.Background(), Caller{ID: "u1", Role: models.RoleUser}, KindHealth)
	if err != nil {
		t.Fatalf("RunFleetCheck: %v", err)
	}
	if summary.Total != 1 || summary.Completed != 1 || summary.Healthy != 1 {
		t.Errorf("summary = %+v, want one healthy completion", summary)
	}
	if fp.probedCount() != 1 {
		t.Errorf("probed %d servers, want 1", fp.probedCount())
	}
	if want := "Health check completed for 1 of 1 servers you have access to"; summary.Message != want {
		t.Errorf("message = %q, want %q", summary.Message, want)
	}
}

func TestRunFleetCheckEmptyTargetSet(t *testing.T) {
	fss := newFakeServerStore(models.Server{ID: "s1", IP: "10.0.0.1"})
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, &fakeProber{}, 2)

	// The caller holds no grants, so nothing is eligible.
	summary, err := orch.RunFleetCheck(context.Background(), Caller{ID: "u1", Role: models.RoleUser}, KindHealth)
	if err != nil {
		t.Fatalf("RunFleetCheck: %v", err)
	}
	if summary.Total != 0 || summary.Message != "No servers found" {
		t.Errorf("summary = %+v, want empty with 'No servers found'", summary)
	}
}

func TestRunFleetCheckSpeedTestKind(t *testing.T) {
	fss := newFakeServerStore(
		models.Server{ID: "s1", IP: "10.0.0.1"},
		models.Server{ID: "s2", IP: "10.0.0.2"},
	)
	fp := &fakeProber{speeds: map[string]*SpeedReading{
		"10.0.0.1": {DownloadMbps: 500, UploadMbps: 200, PingMs: 9},
	}}
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, fp, 2)

	summary, err := orch.RunFleetCheck(context.Background(), adminCaller(), KindSpeedTest)
	if err != nil {
		t.Fatalf("RunFleetCheck: %v", err)
	}
	if summary.Completed != 1 || summary.Healthy != 1 || summary.Inactive != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if want := "Speed test completed for 1 of 2 servers you have access to"; summary.Message != want {
		t.Errorf("message = %q, want %q", summary.Message, want)
	}
	if len(fss.tests) != 1 || fss.tests[0].DownloadSpeed != 500 {
		t.Errorf("persisted speed tests = %+v", fss.tests)
	}
	if fss.statuses["s1"] != models.StatusActive || fss.statuses["s2"] != models.StatusInactive {
		t.Errorf("statuses = %+v", fss.statuses)
	}
}

func TestRunFleetCheckStoreFailureAborts(t *testing.T) {
	fss := newFakeServerStore()
	fss.listErr = errors.New("db gone")
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, &fakeProber{}, 2)

	if _, err := orch.RunFleetCheck(context.Background(), adminCaller(), KindHealth); err == nil {
		t.Fatal("expected error when server listing fails")
	}
}

func TestRunHealthCheckPermissionDeniedBeforeProbe(t *testing.T) {
	fss := newFakeServerStore(models.Server{ID: "s1", IP: "10.0.0.1"})
	fp := &fakeProber{readings: map[string]*HealthReading{"10.0.0.1": healthy()}}
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, fp, 1)

	_, _, err := orch.RunHealthCheck(context.Background(), Caller{ID: "u1", Role: models.RoleUser}, "s1")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if fp.probedCount() != 0 {
		t.Errorf("denied caller still triggered %d probes", fp.probedCount())
	}
}

func TestRunHealthCheckSuccess(t *testing.T) {
	fss := newFakeServerStore(models.Server{ID: "s1", IP: "10.0.0.1"})
	score := 91.0
	fp := &fakeProber{readings: map[string]*HealthReading{
		"10.0.0.1": {CPUUsage: 5, RAMUsage: 10, DiskUsage: 15, HealthScore: &score, Status: "healthy"},
	}}
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, fp, 1)

	metric, reading, err := orch.RunHealthCheck(context.Background(), adminCaller(), "s1")
	if err != nil {
		t.Fatalf("RunHealthCheck: %v", err)
	}
	if reading == nil || !reading.Healthy() {
		t.Fatalf("reading = %+v", reading)
	}
	if metric.Uptime == nil || *metric.Uptime != 91.0 {
		t.Errorf("persisted score = %v, want 91", metric.Uptime)
	}
	if fss.statuses["s1"] != models.StatusActive {
		t.Errorf("status = %s, want ACTIVE", fss.statuses["s1"])
	}
	if len(fss.metrics) != 1 {
		t.Errorf("persisted %d metrics, want 1", len(fss.metrics))
	}
}

func TestRunHealthCheckFailureMarksInactive(t *testing.T) {
	fss := newFakeServerStore(models.Server{ID: "s1", IP: "10.0.0.1"})
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, &fakeProber{}, 1)

	_, _, err := orch.RunHealthCheck(context.Background(), adminCaller(), "s1")
	var perr *ProbeError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *ProbeError", err)
	}
	if fss.statuses["s1"] != models.StatusInactive {
		t.Errorf("status = %s, want INACTIVE", fss.statuses["s1"])
	}
	if len(fss.metrics) != 0 {
		t.Errorf("failed probe persisted %d metrics", len(fss.metrics))
	}
}

func TestRunSpeedTestCapabilityIsIndependent(t *testing.T) {
	fss := newFakeServerStore(models.Server{ID: "s1", IP: "10.0.0.1"})
	// Grant allows speed tests but not health checks.
	fas := &fakeAccessStore{grants: []models.ServerAccess{
		{UserID: "u1", ServerID: "s1", CanRunHealthCheck: boolPtr(false)},
	}}
	fp := &fakeProber{speeds: map[string]*SpeedReading{
		"10.0.0.1": {DownloadMbps: 300, UploadMbps: 100, PingMs: 20},
	}}
	orch := newTestOrchestrator(fss, fas, fp, 1)
	user := Caller{ID: "u1", Role: models.RoleUser}

	st, err := orch.RunSpeedTest(context.Background(), user, "s1")
	if err != nil {
		t.Fatalf("RunSpeedTest: %v", err)
	}
	if st.DownloadSpeed != 300 || st.UploadSpeed != 100 {
		t.Errorf("speed test = %+v", st)
	}
	if fss.statuses["s1"] != models.StatusActive {
		t.Errorf("status = %s, want ACTIVE", fss.statuses["s1"])
	}

	if _, _, err := orch.RunHealthCheck(context.Background(), user, "s1"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("health check err = %v, want ErrPermissionDenied", err)
	}
}

func TestRunFleetCheckSequentialWorker(t *testing.T) {
	fss := newFakeServerStore(
		models.Server{ID: "s1", IP: "10.0.0.1"},
		models.Server{ID: "s2", IP: "10.0.0.2"},
		models.Server{ID: "s3", IP: "10.0.0.3"},
	)
	fp := &fakeProber{readings: map[string]*HealthReading{
		"10.0.0.1": healthy(),
		"10.0.0.2": healthy(),
		"10.0.0.3": healthy(),
	}}
	orch := newTestOrchestrator(fss, &fakeAccessStore{}, fp, 1)

	summary, err := orch.RunFleetCheck(context.Background(), adminCaller(), KindHealth)
	if err != nil {
		t.Fatalf("RunFleetCheck: %v", err)
	}
	if summary.Completed != 3 || summary.Healthy != 3 {
		t.Errorf("summary = %+v, want 3 healthy completions", summary)
	}
}
