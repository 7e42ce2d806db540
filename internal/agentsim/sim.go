package agentsim

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/openfleet/internal/fleet"
	"go.uber.org/zap"
)

// Limits and weights the simulator advertises. A real agent reads
// these from its own configuration; fixed values are fine for a dev
// fixture. Weights sum to 1.0.
var (
	simLimits = fleet.MetricLimits{
		MaxCPUUsage:         90,
		MaxRAMUsage:         90,
		MaxDiskUsage:        95,
		MaxBandwidthPerMbit: 1000,
		MaxBandwidthMonthly: 1_000_000,
	}
	simWeights = fleet.MetricWeights{
		CPU:       0.25,
		RAM:       0.25,
		Disk:      0.20,
		LiveBW:    0.15,
		MonthlyBW: 0.15,
	}
)

// Sim is the simulated VPS agent.
type Sim struct {
	collector *Collector
	// degradedAt is the composite score below which the simulator
	// reports status "degraded" instead of "healthy".
	degradedAt float64
	logger     *zap.Logger
}

// New creates a simulator reporting "degraded" below the given score.
func New(degradedAt float64, logger *zap.Logger) *Sim {
	return &Sim{
		collector:  NewCollector(),
		degradedAt: degradedAt,
		logger:     logger,
	}
}

// Routes registers the agent contract on the engine.
func (s *Sim) Routes(r *gin.Engine) {
	r.GET("/api/vps-health", s.handleHealth)
	r.GET("/api/vps-speedtest", s.handleSpeedTest)
}

// Run serves the agent contract on host:port until the listener fails.
func (s *Sim) Run(host string, port int) error {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Routes(r)

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.logger.Info("agent simulator listening", zap.String("addr", addr))
	return r.Run(addr)
}

func (s *Sim) handleHealth(c *gin.Context) {
	snap := s.collector.Collect()

	scores := fleet.MetricScores{
		CPU:       fleet.Subscore(snap.CPUUsage, simLimits.MaxCPUUsage),
		RAM:       fleet.Subscore(snap.RAMUsage, simLimits.MaxRAMUsage),
		Disk:      fleet.Subscore(snap.DiskUsage, simLimits.MaxDiskUsage),
		LiveBW:    fleet.Subscore(snap.RxMbps+snap.TxMbps, simLimits.MaxBandwidthPerMbit),
		MonthlyBW: fleet.Subscore(snap.TotalRxMB+snap.TotalTxMB, simLimits.MaxBandwidthMonthly),
	}
	score := fleet.WeightedLimitScore(scores, simWeights)

	status := "healthy"
	if score < s.degradedAt {
		status = "degraded"
	}

	reading := fleet.HealthReading{
		CPUUsage:       snap.CPUUsage,
		RAMUsage:       snap.RAMUsage,
		DiskUsage:      snap.DiskUsage,
		HealthScore:    &score,
		Status:         status,
		DetailedScores: &scores,
		Weights:        &simWeights,
		Limits:         &simLimits,
		LiveBandwidth: &fleet.LiveBandwidth{
			DownloadRate:  fmt.Sprintf("%.2f Mbit/s", snap.RxMbps),
			UploadRate:    fmt.Sprintf("%.2f Mbit/s", snap.TxMbps),
			TotalMbitPerS: snap.RxMbps + snap.TxMbps,
			LimitMbitPerS: simLimits.MaxBandwidthPerMbit,
		},
		MonthlyBandwidth: &fleet.MonthlyBandwidth{
			Downloaded: fmt.Sprintf("%.0f MB", snap.TotalRxMB),
			Uploaded:   fmt.Sprintf("%.0f MB", snap.TotalTxMB),
			Total:      fmt.Sprintf("%.0f MB", snap.TotalRxMB+snap.TotalTxMB),
			TotalMB:    snap.TotalRxMB + snap.TotalTxMB,
			LimitMB:    simLimits.MaxBandwidthMonthly,
		},
	}
	c.JSON(http.StatusOK, reading)
}

// handleSpeedTest reports measured interface throughput topped up with
// a synthetic baseline, since an idle dev box would otherwise report
// zeros. The short sleep stands in for a real transfer's duration.
func (s *Sim) handleSpeedTest(c *gin.Context) {
	time.Sleep(500 * time.Millisecond)
	snap := s.collector.Collect()

	reading := fleet.SpeedReading{
		DownloadMbps: snap.RxMbps + 400 + rand.Float64()*400,
		UploadMbps:   snap.TxMbps + 200 + rand.Float64()*300,
		PingMs:       5 + rand.Float64()*40,
	}
	c.JSON(http.StatusOK, reading)
}
