package fleet

import (
	"testing"

	"github.com/vesaa/openfleet/internal/models"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name string
		prev models.ServerStatus
		out  ProbeOutcome
		want models.ServerStatus
	}{
		{
			name: "failed health probe goes inactive",
			prev: models.StatusActive,
			out:  ProbeOutcome{Kind: KindHealth, Failed: true},
			want: models.StatusInactive,
		},
		{
			name: "failed speed test goes inactive",
			prev: models.StatusActive,
			out:  ProbeOutcome{Kind: KindSpeedTest, Failed: true},
			want: models.StatusInactive,
		},
		{
			name: "healthy agent goes active",
			prev: models.StatusInactive,
			out:  ProbeOutcome{Kind: KindHealth, AgentStatus: "healthy"},
			want: models.StatusActive,
		},
		{
			name: "degraded agent goes maintenance",
			prev: models.StatusActive,
			out:  ProbeOutcome{Kind: KindHealth, AgentStatus: "degraded"},
			want: models.StatusMaintenance,
		},
		{
			name: "empty agent status goes maintenance",
			prev: models.StatusUnknown,
			out:  ProbeOutcome{Kind: KindHealth},
			want: models.StatusMaintenance,
		},
		{
			name: "successful speed test goes active regardless of health",
			prev: models.StatusMaintenance,
			out:  ProbeOutcome{Kind: KindSpeedTest},
			want: models.StatusActive,
		},
		{
			name: "unknown never survives a probe",
			prev: models.StatusUnknown,
			out:  ProbeOutcome{Kind: KindHealth, AgentStatus: "healthy"},
			want: models.StatusActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStatus(tt.prev, tt.out); got != tt.want {
				t.Errorf("NextStatus(%s, %+v) = %s, want %s", tt.prev, tt.out, got, tt.want)
			}
		})
	}
}
