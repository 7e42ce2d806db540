package fleet

import "github.com/vesaa/openfleet/internal/models"

// ProbeOutcome summarizes one finished probe for the status machine.
type ProbeOutcome struct {
	Kind        ProbeKind
	Failed      bool
	AgentStatus string // agent-reported status, health probes only
}

// NextStatus derives the server status to persist after a probe.
//
// States: ACTIVE, INACTIVE, MAINTENANCE, UNKNOWN. New servers start at
// UNKNOWN and never return to it once a probe has run. The machine is
// re-evaluated on every run, so the previous state carries no weight in
// the current transition table; it stays in the signature because the
// contract is next(previous, outcome).
func NextStatus(_ models.ServerStatus, out ProbeOutcome) models.ServerStatus {
	if out.Failed {
		return models.StatusInactive
	}
	// A successful speed test carries no health classification.
	if out.Kind == KindSpeedTest {
		return models.StatusActive
	}
	if out.AgentStatus == "healthy" {
		return models.StatusActive
	}
	return models.StatusMaintenance
}
