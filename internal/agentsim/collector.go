// Package agentsim serves the VPS agent HTTP contract from live
// gopsutil readings of the local machine. It exists for development
// and demos: point a server at 127.0.0.1 and the fleet engine can be
// exercised end to end without provisioning a real VPS.
package agentsim

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// Snapshot is one collection cycle over the local machine.
type Snapshot struct {
	CPUUsage  float64
	RAMUsage  float64
	DiskUsage float64

	// Throughput since the previous snapshot, Mbit/s.
	RxMbps float64
	TxMbps float64

	// Cumulative transfer since boot, MB. Stands in for the real
	// agent's month-to-date counters.
	TotalRxMB float64
	TotalTxMB float64

	CollectedAt time.Time
}

// Collector gathers local system metrics. Bandwidth rates are
// delta-based, so the first snapshot reports zero throughput.
type Collector struct {
	mu          sync.Mutex
	prevRx      uint64
	prevTx      uint64
	prevTime    time.Time
	initialized bool
}

func NewCollector() *Collector {
	return &Collector{}
}

// Collect gathers the current snapshot. Individual probe failures
// leave the field at zero rather than failing the whole snapshot.
func (c *Collector) Collect() *Snapshot {
	snap := &Snapshot{CollectedAt: time.Now()}

	if pcts, err := cpu.Percent(500*time.Millisecond, false); err == nil && len(pcts) > 0 {
		snap.CPUUsage = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.RAMUsage = vm.UsedPercent
	}
	snap.DiskUsage = maxDiskUsage()

	rx, tx, totalRx, totalTx := c.netBandwidth()
	snap.RxMbps = rx
	snap.TxMbps = tx
	snap.TotalRxMB = totalRx
	snap.TotalTxMB = totalTx

	return snap
}

// maxDiskUsage returns the used percentage of the fullest partition.
func maxDiskUsage() float64 {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return 0
	}
	var max float64
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			continue
		}
		if usage.UsedPercent > max {
			max = usage.UsedPercent
		}
	}
	return max
}

const bytesPerMB = 1024 * 1024

// netBandwidth computes Mbit/s since the last call from IOCounters
// deltas, plus cumulative MB transferred since boot.
func (c *Collector) netBandwidth() (rxMbps, txMbps, totalRxMB, totalTxMB float64) {
	stats, err := psnet.IOCounters(false)
	if err != nil || len(stats) == 0 {
		return 0, 0, 0, 0
	}
	now := time.Now()
	curRx := stats[0].BytesRecv
	curTx := stats[0].BytesSent
	totalRxMB = float64(curRx) / bytesPerMB
	totalTxMB = float64(curTx) / bytesPerMB

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		dt := now.Sub(c.prevTime).Seconds()
		if dt > 0 && curRx >= c.prevRx && curTx >= c.prevTx {
			rxMbps = float64(curRx-c.prevRx) * 8 / 1e6 / dt
			txMbps = float64(curTx-c.prevTx) * 8 / 1e6 / dt
		}
	}

	c.prevRx = curRx
	c.prevTx = curTx
	c.prevTime = now
	c.initialized = true
	return
}
