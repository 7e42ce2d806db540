package fleet

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSimpleWeightedScore(t *testing.T) {
	tests := []struct {
		name            string
		cpu, ram, disk  float64
		want            float64
	}{
		{"idle", 0, 0, 0, 100},
		{"moderate", 50, 50, 50, 50},
		{"weighted mix", 10, 20, 30, 100 - (10*0.3 + 20*0.4 + 30*0.3)},
		{"saturated", 100, 100, 100, 0},
		{"over 100 inputs clamp at floor", 200, 200, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimpleWeightedScore(tt.cpu, tt.ram, tt.disk)
			if !almostEqual(got, tt.want) {
				t.Errorf("SimpleWeightedScore(%v, %v, %v) = %v, want %v", tt.cpu, tt.ram, tt.disk, got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("score %v outside [0,100]", got)
			}
		})
	}
}

func TestSubscore(t *testing.T) {
	tests := []struct {
		name         string
		usage, limit float64
		want         float64
	}{
		{"no usage", 0, 90, 100},
		{"half of limit", 45, 90, 50},
		{"at limit", 90, 90, 0},
		{"over limit clamps", 180, 90, 0},
		{"zero limit with usage", 5, 0, 0},
		{"zero limit without usage", 0, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subscore(tt.usage, tt.limit); !almostEqual(got, tt.want) {
				t.Errorf("Subscore(%v, %v) = %v, want %v", tt.usage, tt.limit, got, tt.want)
			}
		})
	}
}

func TestWeightedLimitScore(t *testing.T) {
	sub := MetricScores{CPU: 80, RAM: 60, Disk: 100, LiveBW: 100, MonthlyBW: 40}
	w := MetricWeights{CPU: 0.25, RAM: 0.25, Disk: 0.2, LiveBW: 0.15, MonthlyBW: 0.15}

	want := 0.25*80 + 0.25*60 + 0.2*100 + 0.15*100 + 0.15*40
	if got := WeightedLimitScore(sub, w); !almostEqual(got, want) {
		t.Errorf("WeightedLimitScore = %v, want %v", got, want)
	}

	// Malformed weights must still land in [0,100].
	huge := MetricWeights{CPU: 2, RAM: 2, Disk: 2, LiveBW: 2, MonthlyBW: 2}
	if got := WeightedLimitScore(sub, huge); got != 100 {
		t.Errorf("WeightedLimitScore with oversized weights = %v, want 100", got)
	}
}

func TestScoreReadingAgentScoreWins(t *testing.T) {
	agentScore := 73.5
	r := &HealthReading{
		CPUUsage:    90,
		RAMUsage:    90,
		DiskUsage:   90,
		HealthScore: &agentScore,
		Weights:     &MetricWeights{CPU: 1},
	}
	if got := ScoreReading(r); !almostEqual(got, 73.5) {
		t.Errorf("ScoreReading = %v, want agent-reported 73.5", got)
	}

	// A reported zero is still a report, not an absence.
	zero := 0.0
	r.HealthScore = &zero
	if got := ScoreReading(r); got != 0 {
		t.Errorf("ScoreReading with reported zero = %v, want 0", got)
	}

	// Out-of-range agent scores are clamped.
	big := 250.0
	r.HealthScore = &big
	if got := ScoreReading(r); got != 100 {
		t.Errorf("ScoreReading with out-of-range agent score = %v, want 100", got)
	}
}

func TestScoreReadingWeightedStrategy(t *testing.T) {
	r := &HealthReading{
		CPUUsage:  45,
		RAMUsage:  45,
		DiskUsage: 47.5,
		Weights:   &MetricWeights{CPU: 0.25, RAM: 0.25, Disk: 0.2, LiveBW: 0.15, MonthlyBW: 0.15},
		Limits: &MetricLimits{
			MaxCPUUsage:         90,
			MaxRAMUsage:         90,
			MaxDiskUsage:        95,
			MaxBandwidthPerMbit: 1000,
			MaxBandwidthMonthly: 1000,
		},
	}
	// Subscores: cpu 50, ram 50, disk 50, live_bw 100 (no block → usage 0),
	// monthly_bw 100.
	want := 0.25*50 + 0.25*50 + 0.2*50 + 0.15*100 + 0.15*100
	if got := ScoreReading(r); !almostEqual(got, want) {
		t.Errorf("ScoreReading = %v, want %v", got, want)
	}

	// Agent-supplied subscores take precedence over derived ones.
	r.DetailedScores = &MetricScores{CPU: 10, RAM: 10, Disk: 10, LiveBW: 10, MonthlyBW: 10}
	if got := ScoreReading(r); !almostEqual(got, 10) {
		t.Errorf("ScoreReading with detailed scores = %v, want 10", got)
	}
}

func TestScoreReadingFallsBackToSimple(t *testing.T) {
	r := &HealthReading{CPUUsage: 50, RAMUsage: 50, DiskUsage: 50}
	if got := ScoreReading(r); !almostEqual(got, 50) {
		t.Errorf("ScoreReading = %v, want 50", got)
	}
}
