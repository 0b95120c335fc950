package client

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/time-oracle/core/measurements"
)

// QueryServers queries all servers concurrently, at most limit at a time
// (no limit if limit <= 0), and returns one sample per server in input
// order once every query has completed or timed out.
func QueryServers(ctx context.Context, q Querier, servers []string, timeout time.Duration, limit int) []measurements.Sample {
	samples := make([]measurements.Sample, len(servers))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, server := range servers {
		g.Go(func() error {
			samples[i] = q.Query(ctx, server, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return samples
}
