// Package consensus reconciles the samples of one query round into a
// single timestamp with an error bound.
package consensus

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/time-oracle/base/timebase"
	"example.com/time-oracle/base/timemath"
	"example.com/time-oracle/core/measurements"
)

type Method string

const (
	MedianWithOutlierRejection Method = "median_with_outlier_rejection"
	SingleSource               Method = "single_source"
	SystemFallback             Method = "system_fallback"
)

func (m Method) String() string {
	return string(m)
}

// UntrustedErrorMs is reported as the error bound when no source answered.
const UntrustedErrorMs = 999_999.0

const warnAllFailed = "all sources failed, using system clock"

type Config struct {
	// MinSources is the number of successful samples required for a
	// median consensus. Values below 1 are treated as 1.
	MinSources int

	// MaxOutlierDeviation is the largest distance from the median a
	// sample may have before it is rejected.
	MaxOutlierDeviation time.Duration

	// MaxDisagreement is the largest spread of the retained samples
	// tolerated without a warning.
	MaxDisagreement time.Duration
}

type Result struct {
	Timestamp        time.Time
	SourcesUsed      int
	TotalSources     int
	Method           Method
	EstimatedErrorMs float64

	// Samples holds every input sample in input order, including
	// failures and rejected outliers.
	Samples  []measurements.Sample
	Warnings []string

	SystemTime    time.Time
	SystemDeltaMs float64
}

type Calculator struct {
	log *zap.Logger
	cfg Config
	clk timebase.Clock
}

func NewCalculator(log *zap.Logger, cfg Config, clk timebase.Clock) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MinSources < 1 {
		cfg.MinSources = 1
	}
	return &Calculator{log: log, cfg: cfg, clk: timebase.Or(clk)}
}

func medianTime(ts []time.Time) time.Time {
	if len(ts) == 0 {
		panic("invalid argument: no timestamps, median undefined")
	}
	sorted := slices.Clone(ts)
	slices.SortFunc(sorted, time.Time.Compare)
	n := len(sorted)
	if n%2 == 0 {
		return sorted[n/2-1].Add(sorted[n/2].Sub(sorted[n/2-1]) / 2)
	}
	return sorted[n/2]
}

func medianDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		panic("invalid argument: no durations, median undefined")
	}
	sorted := slices.Clone(ds)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return sorted[n/2-1] + (sorted[n/2]-sorted[n/2-1])/2
	}
	return sorted[n/2]
}

func spread(samples []*measurements.Sample) time.Duration {
	lo, hi := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples[1:] {
		if s.Timestamp.Before(lo) {
			lo = s.Timestamp
		}
		if s.Timestamp.After(hi) {
			hi = s.Timestamp
		}
	}
	return hi.Sub(lo)
}

func failureWarning(failed []*measurements.Sample, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d sources failed: ", len(failed), total)
	for i, s := range failed {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", s.Server, s.Failure.Kind)
	}
	return b.String()
}

// Compute is a pure function of samples and a single reading of the
// system clock.
func (c *Calculator) Compute(samples []measurements.Sample) Result {
	now := c.clk.Now()

	r := Result{
		TotalSources: len(samples),
		Samples:      slices.Clone(samples),
		SystemTime:   now,
	}

	var ok, failed []*measurements.Sample
	for i := range r.Samples {
		if r.Samples[i].Success() {
			ok = append(ok, &r.Samples[i])
		} else {
			failed = append(failed, &r.Samples[i])
		}
	}
	if len(failed) != 0 && len(ok) != 0 {
		r.Warnings = append(r.Warnings, failureWarning(failed, len(samples)))
	}

	switch {
	case len(ok) == 0:
		r.Method = SystemFallback
		r.Timestamp = now
		r.EstimatedErrorMs = UntrustedErrorMs
		r.Warnings = append(r.Warnings, warnAllFailed)
	case len(ok) < c.cfg.MinSources:
		s := ok[0]
		r.Method = SingleSource
		r.Timestamp = s.Timestamp
		r.SourcesUsed = len(ok)
		r.EstimatedErrorMs = timemath.Milliseconds(s.RTT)
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"only %d of %d sources responded (minimum %d), using %s with reduced confidence",
			len(ok), len(samples), c.cfg.MinSources, s.Server))
	default:
		c.median(&r, ok)
	}

	r.SystemDeltaMs = timemath.Milliseconds(now.Sub(r.Timestamp))

	c.log.Debug("computed consensus",
		zap.Stringer("method", r.Method),
		zap.Time("timestamp", r.Timestamp),
		zap.Int("sources used", r.SourcesUsed),
		zap.Int("total sources", r.TotalSources),
		zap.Float64("estimated error ms", r.EstimatedErrorMs),
	)
	return r
}

func (c *Calculator) median(r *Result, ok []*measurements.Sample) {
	ts := make([]time.Time, len(ok))
	for i, s := range ok {
		ts[i] = s.Timestamp
	}
	m := medianTime(ts)

	var retained, rejected []*measurements.Sample
	for _, s := range ok {
		if timemath.Abs(s.Timestamp.Sub(m)) > c.cfg.MaxOutlierDeviation {
			rejected = append(rejected, s)
		} else {
			retained = append(retained, s)
		}
	}
	if len(retained) == 0 {
		retained, rejected = ok, nil
	}
	for _, s := range rejected {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"rejected outlier %s: %+.1fms from median",
			s.Server, timemath.Milliseconds(s.Timestamp.Sub(m))))
	}

	ts = ts[:0]
	rtts := make([]time.Duration, 0, len(retained))
	for _, s := range retained {
		ts = append(ts, s.Timestamp)
		rtts = append(rtts, s.RTT)
	}
	sp := spread(retained)

	r.Method = MedianWithOutlierRejection
	r.Timestamp = medianTime(ts)
	r.SourcesUsed = len(retained)
	r.EstimatedErrorMs = max(
		timemath.Milliseconds(medianDuration(rtts))/2,
		timemath.Milliseconds(sp)/2)

	if sp > c.cfg.MaxDisagreement {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"sources disagree by %.1fms (threshold %.1fms)",
			timemath.Milliseconds(sp), timemath.Milliseconds(c.cfg.MaxDisagreement)))
	}
}
