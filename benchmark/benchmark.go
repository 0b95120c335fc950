// Package benchmark repeatedly queries a set of servers and reports the
// round trip delay distribution of each.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"example.com/time-oracle/core/client"
)

const (
	minRTTMicros = 1
	maxRTTMicros = 60_000_000
)

type Result struct {
	Server    string
	Succeeded int64
	Failures  map[string]int64

	// RTT holds the round trip delays of successful queries in
	// microseconds.
	RTT *hdrhistogram.Histogram
}

func (r *Result) Failed() int64 {
	var n int64
	for _, c := range r.Failures {
		n += c
	}
	return n
}

// Run performs rounds query rounds against servers. Each round queries
// all servers concurrently, bounded by limit.
func Run(ctx context.Context, log *zap.Logger, q client.Querier, servers []string,
	rounds int, timeout time.Duration, limit int) []Result {
	results := make([]Result, len(servers))
	for i, s := range servers {
		results[i] = Result{
			Server:   s,
			Failures: map[string]int64{},
			RTT:      hdrhistogram.New(minRTTMicros, maxRTTMicros, 3),
		}
	}

	t0 := time.Now()
	for range rounds {
		if ctx.Err() != nil {
			break
		}
		samples := client.QueryServers(ctx, q, servers, timeout, limit)
		for i, s := range samples {
			r := &results[i]
			if !s.Success() {
				r.Failures[s.Failure.Kind.String()]++
				continue
			}
			r.Succeeded++
			err := r.RTT.RecordValue(max(s.RTT.Microseconds(), minRTTMicros))
			if err != nil {
				log.Info("failed to record round trip delay",
					zap.String("server", s.Server), zap.Duration("rtt", s.RTT), zap.Error(err))
			}
		}
	}
	log.Info("time elapsed", zap.Duration("duration", time.Since(t0)))
	return results
}

func micros(v int64) float64 {
	return float64(v) / 1e3
}

// Print writes one summary line per server, in milliseconds, followed by
// the full percentile distribution if verbose is set.
func Print(w io.Writer, results []Result, verbose bool) error {
	for i := range results {
		r := &results[i]
		_, err := fmt.Fprintf(w, "%s: %d ok, %d failed", r.Server, r.Succeeded, r.Failed())
		if err != nil {
			return err
		}
		if r.RTT.TotalCount() != 0 {
			_, err = fmt.Fprintf(w, ", rtt p50 %.3fms p90 %.3fms p99 %.3fms max %.3fms",
				micros(r.RTT.ValueAtQuantile(50)),
				micros(r.RTT.ValueAtQuantile(90)),
				micros(r.RTT.ValueAtQuantile(99)),
				micros(r.RTT.Max()))
			if err != nil {
				return err
			}
		}
		for _, kind := range []string{"timeout", "dns_error", "network_error", "parse_error"} {
			if n := r.Failures[kind]; n != 0 {
				_, err = fmt.Fprintf(w, ", %s %d", kind, n)
				if err != nil {
					return err
				}
			}
		}
		_, err = fmt.Fprintln(w)
		if err != nil {
			return err
		}
		if verbose && r.RTT.TotalCount() != 0 {
			_, err = r.RTT.PercentilesPrint(w, 1, 1e3)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
