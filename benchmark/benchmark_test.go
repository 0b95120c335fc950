package benchmark

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/time-oracle/core/measurements"
)

type scriptedQuerier struct{}

func (scriptedQuerier) Query(_ context.Context, server string, _ time.Duration) measurements.Sample {
	switch server {
	case "good":
		return measurements.Succeeded(server, time.Now(), 12*time.Millisecond, 1)
	case "dns":
		return measurements.Failed(server, measurements.NameResolution, errors.New("no such host"))
	default:
		return measurements.Failed(server, measurements.Timeout, errors.New("i/o timeout"))
	}
}

func TestRun(t *testing.T) {
	servers := []string{"good", "dns", "slow"}
	results := Run(context.Background(), zap.NewNop(), scriptedQuerier{}, servers, 5, time.Second, 0)
	if len(results) != len(servers) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(servers))
	}

	good := results[0]
	if good.Server != "good" || good.Succeeded != 5 || good.Failed() != 0 {
		t.Errorf("results[0] = %+v", good)
	}
	if good.RTT.TotalCount() != 5 {
		t.Errorf("RTT.TotalCount() = %d, want 5", good.RTT.TotalCount())
	}
	if p50 := good.RTT.ValueAtQuantile(50); p50 < 11_990 || p50 > 12_010 {
		t.Errorf("p50 = %dus, want about 12000us", p50)
	}
	if results[1].Failures["dns_error"] != 5 || results[2].Failures["timeout"] != 5 {
		t.Errorf("failures = %v, %v", results[1].Failures, results[2].Failures)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := Run(ctx, zap.NewNop(), scriptedQuerier{}, []string{"good"}, 100, time.Second, 0)
	if results[0].Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0 after cancellation", results[0].Succeeded)
	}
}

func TestPrint(t *testing.T) {
	results := Run(context.Background(), zap.NewNop(), scriptedQuerier{}, []string{"good", "dns"}, 2, time.Second, 0)
	var b bytes.Buffer
	if err := Print(&b, results, false); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Print wrote %d lines, want 2:\n%s", len(lines), b.String())
	}
	if !strings.HasPrefix(lines[0], "good: 2 ok, 0 failed, rtt p50 12.0") {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if lines[1] != "dns: 0 ok, 2 failed, dns_error 2" {
		t.Errorf("lines[1] = %q", lines[1])
	}
}
