package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ProbeKind selects which agent endpoint a probe hits.
type ProbeKind string

const (
	KindHealth    ProbeKind = "health"
	KindSpeedTest ProbeKind = "speedtest"
)

// Probe failure reasons.
const (
	ReasonConnection = "connection"
	ReasonTimeout    = "timeout"
	ReasonStatus     = "status"
	ReasonParse      = "parse"
)

// ProbeError is the typed failure of a single agent probe. Probes never
// retry; the next scheduled fleet run is the retry.
type ProbeError struct {
	Kind   ProbeKind
	Addr   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe %s: %s: %v", e.Kind, e.Addr, e.Reason, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// HealthReading is the agent's health payload. HealthScore is a pointer
// so the scorer can tell "agent reported 0" apart from "not reported".
type HealthReading struct {
	CPUUsage    float64  `json:"cpu_usage_percentage"`
	RAMUsage    float64  `json:"ram_usage_percentage"`
	DiskUsage   float64  `json:"disk_usage_percentage"`
	HealthScore *float64 `json:"health_score,omitempty"`
	Status      string   `json:"status"`

	DetailedScores   *MetricScores     `json:"detailed_scores,omitempty"`
	Weights          *MetricWeights    `json:"weights,omitempty"`
	Limits           *MetricLimits     `json:"limits,omitempty"`
	LiveBandwidth    *LiveBandwidth    `json:"live_bandwidth,omitempty"`
	MonthlyBandwidth *MonthlyBandwidth `json:"monthly_bandwidth,omitempty"`
}

// Healthy reports whether the agent classified itself healthy.
func (r *HealthReading) Healthy() bool { return r.Status == "healthy" }

// MetricScores holds agent-computed per-metric subscores (0-100 each).
type MetricScores struct {
	CPU       float64 `json:"cpu"`
	RAM       float64 `json:"ram"`
	Disk      float64 `json:"disk"`
	LiveBW    float64 `json:"live_bw"`
	MonthlyBW float64 `json:"monthly_bw"`
}

// MetricWeights holds the per-metric weights; they sum to 1.0.
type MetricWeights struct {
	CPU       float64 `json:"cpu"`
	RAM       float64 `json:"ram"`
	Disk      float64 `json:"disk"`
	LiveBW    float64 `json:"live_bw"`
	MonthlyBW float64 `json:"monthly_bw"`
}

// MetricLimits holds the configured ceilings each usage is scored against.
type MetricLimits struct {
	MaxCPUUsage         float64 `json:"max_cpu_usage"`
	MaxRAMUsage         float64 `json:"max_ram_usage"`
	MaxDiskUsage        float64 `json:"max_disk_usage"`
	MaxBandwidthPerMbit float64 `json:"max_bandwidth_per_mbit"`
	MaxBandwidthMonthly float64 `json:"max_bandwidth_monthly"`
}

// LiveBandwidth is the agent's current throughput block.
type LiveBandwidth struct {
	DownloadRate  string  `json:"download_rate"`
	UploadRate    string  `json:"upload_rate"`
	TotalMbitPerS float64 `json:"total_mbit_per_s"`
	LimitMbitPerS float64 `json:"limit_mbit_per_s"`
}

// MonthlyBandwidth is the agent's month-to-date transfer block.
type MonthlyBandwidth struct {
	Downloaded string  `json:"downloaded"`
	Uploaded   string  `json:"uploaded"`
	Total      string  `json:"total"`
	TotalMB    float64 `json:"total_mb"`
	LimitMB    float64 `json:"limit_mb"`
}

// SpeedReading is the agent's speed-test payload.
type SpeedReading struct {
	DownloadMbps float64 `json:"download_mbps"`
	UploadMbps   float64 `json:"upload_mbps"`
	PingMs       float64 `json:"ping_ms"`
}

// Prober issues single bounded-timeout GETs against per-server agents.
// It performs no retries and touches no storage.
type Prober struct {
	client    *http.Client
	agentPort int

	healthTimeout time.Duration
	speedTimeout  time.Duration

	logger *zap.Logger
}

// NewProber creates a Prober. Timeouts are applied per probe kind via
// request contexts so one client can serve both endpoints.
func NewProber(agentPort int, healthTimeout, speedTimeout time.Duration, logger *zap.Logger) *Prober {
	return &Prober{
		client: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		agentPort:     agentPort,
		healthTimeout: healthTimeout,
		speedTimeout:  speedTimeout,
		logger:        logger,
	}
}

// Health fetches and parses one health reading from the agent at addr.
func (p *Prober) Health(ctx context.Context, addr string) (*HealthReading, *ProbeError) {
	var reading HealthReading
	if perr := p.get(ctx, KindHealth, addr, "/api/vps-health", p.healthTimeout, &reading); perr != nil {
		return nil, perr
	}
	return &reading, nil
}

// SpeedTest fetches one speed-test result from the agent at addr. The
// agent transfers real data, hence the much larger timeout.
func (p *Prober) SpeedTest(ctx context.Context, addr string) (*SpeedReading, *ProbeError) {
	var reading SpeedReading
	if perr := p.get(ctx, KindSpeedTest, addr, "/api/vps-speedtest", p.speedTimeout, &reading); perr != nil {
		return nil, perr
	}
	return &reading, nil
}

// get performs the single GET that constitutes one probe.
func (p *Prober) get(ctx context.Context, kind ProbeKind, addr, path string, timeout time.Duration, out any) *ProbeError {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(addr, strconv.Itoa(p.agentPort)), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return &ProbeError{Kind: kind, Addr: addr, Reason: ReasonConnection, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		reason := ReasonConnection
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return &ProbeError{Kind: kind, Addr: addr, Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProbeError{
			Kind:   kind,
			Addr:   addr,
			Reason: ReasonStatus,
			Err:    fmt.Errorf("agent returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProbeError{Kind: kind, Addr: addr, Reason: ReasonParse, Err: err}
	}
	return nil
}
