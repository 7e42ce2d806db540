package fleet

// Health scoring. Two named strategies coexist:
//
//   - SimpleWeightedScore: fixed CPU/RAM/disk weights, used when only
//     basic usage percentages are available.
//   - WeightedLimitScore: per-metric subscores against configured
//     limits, combined with agent-supplied weights. This is the richer
//     form the agent computes itself.
//
// Both are deterministic pure functions and always land in [0,100].

// Fixed weights for the simple strategy.
const (
	simpleCPUWeight  = 0.3
	simpleRAMWeight  = 0.4
	simpleDiskWeight = 0.3
)

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// SimpleWeightedScore computes 100 - (cpu*0.3 + ram*0.4 + disk*0.3),
// clamped to [0,100]. Inputs are usage percentages.
func SimpleWeightedScore(cpu, ram, disk float64) float64 {
	return clampScore(100 - (cpu*simpleCPUWeight + ram*simpleRAMWeight + disk*simpleDiskWeight))
}

// Subscore maps one usage value against its limit to a 0-100 score:
// max(0, 100 - 100*usage/limit). A zero limit never divides: any usage
// against a zero limit scores 0 (worst case), zero usage scores 100.
func Subscore(usage, limit float64) float64 {
	if limit == 0 {
		if usage > 0 {
			return 0
		}
		return 100
	}
	return clampScore(100 - 100*usage/limit)
}

// WeightedLimitScore combines per-metric subscores with their weights.
// Weights are expected to sum to 1.0; the result is clamped regardless.
func WeightedLimitScore(sub MetricScores, w MetricWeights) float64 {
	return clampScore(
		w.CPU*sub.CPU +
			w.RAM*sub.RAM +
			w.Disk*sub.Disk +
			w.LiveBW*sub.LiveBW +
			w.MonthlyBW*sub.MonthlyBW,
	)
}

// subscoresFromReading derives the five subscores from raw usages and
// limits when the agent did not supply them directly.
func subscoresFromReading(r *HealthReading) MetricScores {
	var limits MetricLimits
	if r.Limits != nil {
		limits = *r.Limits
	}

	var liveBW, monthlyBW float64
	if r.LiveBandwidth != nil {
		liveBW = r.LiveBandwidth.TotalMbitPerS
	}
	if r.MonthlyBandwidth != nil {
		monthlyBW = r.MonthlyBandwidth.TotalMB
	}

	return MetricScores{
		CPU:       Subscore(r.CPUUsage, limits.MaxCPUUsage),
		RAM:       Subscore(r.RAMUsage, limits.MaxRAMUsage),
		Disk:      Subscore(r.DiskUsage, limits.MaxDiskUsage),
		LiveBW:    Subscore(liveBW, limits.MaxBandwidthPerMbit),
		MonthlyBW: Subscore(monthlyBW, limits.MaxBandwidthMonthly),
	}
}

// ScoreReading picks the scoring policy for one reading:
//
//  1. An agent-reported composite score is authoritative.
//  2. With weights present, the weighted-limit strategy applies, using
//     agent-supplied subscores when available.
//  3. Otherwise the simple weighted formula over cpu/ram/disk.
func ScoreReading(r *HealthReading) float64 {
	if r.HealthScore != nil {
		return clampScore(*r.HealthScore)
	}

	if r.Weights != nil {
		sub := subscoresFromReading(r)
		if r.DetailedScores != nil {
			sub = *r.DetailedScores
		}
		return WeightedLimitScore(sub, *r.Weights)
	}

	return SimpleWeightedScore(r.CPUUsage, r.RAMUsage, r.DiskUsage)
}
