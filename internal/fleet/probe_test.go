package fleet

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
)

// proberFor returns a Prober aimed at the test server's ephemeral port,
// plus the host to probe.
func proberFor(t *testing.T, ts *httptest.Server, healthTimeout time.Duration) (*Prober, string) {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("splitting host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return NewProber(port, healthTimeout, healthTimeout, zap.NewNop()), host
}

func TestProberHealthParsesReading(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/vps-health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"cpu_usage_percentage": 12.5,
			"ram_usage_percentage": 48.0,
			"disk_usage_percentage": 61.2,
			"health_score": 88.0,
			"status": "healthy",
			"weights": {"cpu": 0.25, "ram": 0.25, "disk": 0.2, "live_bw": 0.15, "monthly_bw": 0.15}
		}`))
	}))
	defer ts.Close()

	p, host := proberFor(t, ts, 2*time.Second)
	reading, perr := p.Health(context.Background(), host)
	if perr != nil {
		t.Fatalf("Health: %v", perr)
	}
	if reading.CPUUsage != 12.5 || reading.RAMUsage != 48.0 || reading.DiskUsage != 61.2 {
		t.Errorf("usages = %v/%v/%v", reading.CPUUsage, reading.RAMUsage, reading.DiskUsage)
	}
	if reading.HealthScore == nil || *reading.HealthScore != 88.0 {
		t.Errorf("health score = %v, want 88", reading.HealthScore)
	}
	if !reading.Healthy() {
		t.Error("reading not classified healthy")
	}
	if reading.Weights == nil || reading.Weights.CPU != 0.25 {
		t.Errorf("weights = %+v", reading.Weights)
	}
	// Absent optional blocks stay nil so the scorer can tell.
	if reading.Limits != nil || reading.DetailedScores != nil {
		t.Error("absent blocks decoded as non-nil")
	}
}

func TestProberSpeedTestParsesReading(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/vps-speedtest" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"download_mbps": 512.3, "upload_mbps": 230.1, "ping_ms": 11.8}`))
	}))
	defer ts.Close()

	p, host := proberFor(t, ts, 2*time.Second)
	reading, perr := p.SpeedTest(context.Background(), host)
	if perr != nil {
		t.Fatalf("SpeedTest: %v", perr)
	}
	if reading.DownloadMbps != 512.3 || reading.UploadMbps != 230.1 || reading.PingMs != 11.8 {
		t.Errorf("reading = %+v", reading)
	}
}

func TestProberNon2xxIsStatusFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer ts.Close()

	p, host := proberFor(t, ts, 2*time.Second)
	_, perr := p.Health(context.Background(), host)
	if perr == nil {
		t.Fatal("expected probe error")
	}
	if perr.Reason != ReasonStatus {
		t.Errorf("reason = %q, want %q", perr.Reason, ReasonStatus)
	}
	if perr.Kind != KindHealth {
		t.Errorf("kind = %q, want %q", perr.Kind, KindHealth)
	}
}

func TestProberMalformedBodyIsParseFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cpu_usage_percentage": "not a number"`))
	}))
	defer ts.Close()

	p, host := proberFor(t, ts, 2*time.Second)
	_, perr := p.Health(context.Background(), host)
	if perr == nil {
		t.Fatal("expected probe error")
	}
	if perr.Reason != ReasonParse {
		t.Errorf("reason = %q, want %q", perr.Reason, ReasonParse)
	}
}

func TestProberSlowAgentIsTimeoutFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	p, host := proberFor(t, ts, 100*time.Millisecond)
	start := time.Now()
	_, perr := p.Health(context.Background(), host)
	if perr == nil {
		t.Fatal("expected probe error")
	}
	if perr.Reason != ReasonTimeout {
		t.Errorf("reason = %q, want %q", perr.Reason, ReasonTimeout)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, timeout did not bound it", elapsed)
	}
}

func TestProberConnectionRefusedIsConnectionFailure(t *testing.T) {
	// A closed test server guarantees nothing listens on the port.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	p, host := proberFor(t, ts, 2*time.Second)
	ts.Close()

	_, perr := p.Health(context.Background(), host)
	if perr == nil {
		t.Fatal("expected probe error")
	}
	if perr.Reason != ReasonConnection {
		t.Errorf("reason = %q, want %q", perr.Reason, ReasonConnection)
	}
}
