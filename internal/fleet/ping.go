package fleet

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingResult is one ICMP reachability check against a server's address.
// It says nothing about the agent; a server can answer pings while its
// agent is down.
type PingResult struct {
	Alive       bool    `json:"alive"`
	PacketsSent int     `json:"packets_sent"`
	PacketsRecv int     `json:"packets_recv"`
	AvgRttMs    float64 `json:"avg_rtt_ms"`
}

// Pinger performs ICMP echo reachability checks.
type Pinger struct {
	count   int
	timeout time.Duration
}

// NewPinger creates a Pinger sending count echoes per check.
func NewPinger(count int, timeout time.Duration) *Pinger {
	if count < 1 {
		count = 1
	}
	return &Pinger{count: count, timeout: timeout}
}

// Ping checks whether addr answers ICMP echoes within the timeout.
func (p *Pinger) Ping(ctx context.Context, addr string) (*PingResult, error) {
	pinger, err := probing.NewPinger(addr)
	if err != nil {
		return nil, fmt.Errorf("creating pinger for %s: %w", addr, err)
	}
	pinger.Count = p.count
	pinger.Timeout = p.timeout
	// Windows has no unprivileged ICMP sockets.
	pinger.SetPrivileged(runtime.GOOS == "windows")

	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging %s: %w", addr, err)
	}

	stats := pinger.Statistics()
	return &PingResult{
		Alive:       stats.PacketsRecv > 0,
		PacketsSent: stats.PacketsSent,
		PacketsRecv: stats.PacketsRecv,
		AvgRttMs:    float64(stats.AvgRtt) / float64(time.Millisecond),
	}, nil
}
