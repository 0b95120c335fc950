// Package oracle answers trusted-time requests by querying the configured
// servers, reconciling their samples and comparing the result against the
// system clock.
package oracle

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/time-oracle/base/timebase"
	"example.com/time-oracle/base/timemath"
	"example.com/time-oracle/core/client"
	"example.com/time-oracle/core/consensus"
	"example.com/time-oracle/core/tz"
)

type Mode string

const (
	Fast     Mode = "fast"
	Accurate Mode = "accurate"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode accepts "fast", "accurate" or the empty string, which means
// fast.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Fast:
		return Fast, nil
	case Accurate:
		return Accurate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

const (
	compensationFactor        = 0.1
	compensationWarnThreshold = 100 * time.Millisecond
)

// Oracle holds no mutable state. Concurrent calls are independent.
type Oracle struct {
	log  *zap.Logger
	cfg  Config
	q    client.Querier
	clk  timebase.Clock
	calc *consensus.Calculator
}

func New(log *zap.Logger, cfg Config, q client.Querier, clk timebase.Clock) (*Oracle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.Servers = slices.Clone(cfg.Servers)
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	clk = timebase.Or(clk)
	return &Oracle{
		log: log,
		cfg: cfg,
		q:   q,
		clk: clk,
		calc: consensus.NewCalculator(log, consensus.Config{
			MinSources:          cfg.MinSources,
			MaxOutlierDeviation: cfg.MaxOutlierDeviation,
			MaxDisagreement:     cfg.MaxDisagreement,
		}, clk),
	}, nil
}

func (o *Oracle) servers(mode Mode) ([]string, error) {
	switch mode {
	case Fast:
		return o.cfg.Servers[:o.cfg.FastModeServerCount], nil
	case Accurate:
		return o.cfg.Servers, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, string(mode))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tz.Layout)
}

// TimeUTC returns the consensus time for the servers selected by mode.
// With compensate set, the timestamp is shifted forward by the time spent
// answering and the error bound grows by a tenth of that duration.
func (o *Oracle) TimeUTC(ctx context.Context, mode Mode, compensate bool) (TimeResult, error) {
	servers, err := o.servers(mode)
	if err != nil {
		return TimeResult{}, err
	}
	log := o.log.With(
		zap.String("request", uuid.NewString()),
		zap.Stringer("mode", mode),
	)

	start := o.clk.Now()
	samples := client.QueryServers(ctx, o.q, servers, o.cfg.Timeout, o.cfg.Concurrency)
	r := o.calc.Compute(samples)
	elapsed := max(o.clk.Now().Sub(start), 0)

	mtrcs.reqs.WithLabelValues(r.Method.String()).Inc()
	mtrcs.duration.Observe(elapsed.Seconds())

	ts := r.Timestamp
	estErrMs := r.EstimatedErrorMs
	sysTime := r.SystemTime
	sysDeltaMs := r.SystemDeltaMs
	warnings := slices.Clone(r.Warnings)
	if compensate {
		ts = ts.Add(elapsed)
		estErrMs += compensationFactor * timemath.Milliseconds(elapsed)
		if elapsed > compensationWarnThreshold {
			warnings = append(warnings, fmt.Sprintf(
				"applied +%.1fms latency compensation to timestamp", timemath.Milliseconds(elapsed)))
		}
		sysTime = o.clk.Now()
		sysDeltaMs = timemath.Milliseconds(sysTime.Sub(ts))
	}
	if warnings == nil {
		warnings = []string{}
	}

	records := make([]SourceRecord, len(r.Samples))
	for i := range r.Samples {
		records[i] = newSourceRecord(&r.Samples[i])
	}

	res := TimeResult{
		ISO8601Time:        formatTime(ts),
		EpochMs:            ts.UnixMilli(),
		SourcesUsed:        r.SourcesUsed,
		TotalSources:       r.TotalSources,
		ConsensusMethod:    r.Method.String(),
		EstimatedErrorMs:   estErrMs,
		SourceSamples:      records,
		Warnings:           warnings,
		SystemTime:         formatTime(sysTime),
		SystemDeltaMs:      sysDeltaMs,
		QueryDurationMs:    timemath.Milliseconds(elapsed),
		LatencyCompensated: compensate,
	}

	log.Info("computed trusted time",
		zap.String("time", res.ISO8601Time),
		zap.String("method", res.ConsensusMethod),
		zap.Int("sources used", res.SourcesUsed),
		zap.Int("total sources", res.TotalSources),
		zap.Float64("estimated error ms", res.EstimatedErrorMs),
		zap.Float64("system delta ms", res.SystemDeltaMs),
		zap.Duration("query duration", elapsed),
	)
	for _, w := range res.Warnings {
		log.Warn(w)
	}
	return res, nil
}

// TimeForTimezone is TimeUTC plus the consensus time in the named zone.
// An unknown zone is reported in LocalTime and Warnings, the UTC fields
// stay valid.
func (o *Oracle) TimeForTimezone(ctx context.Context, name string, mode Mode, compensate bool) (TimezoneResult, error) {
	res, err := o.TimeUTC(ctx, mode, compensate)
	if err != nil {
		return TimezoneResult{}, err
	}
	zres := TimezoneResult{TimeResult: res, Timezone: name}
	lt, err := tz.Convert(time.UnixMilli(res.EpochMs), name)
	if err != nil {
		o.log.Info("failed to convert to time zone",
			zap.String("zone", name), zap.Error(err))
		zres.LocalTime = "ERROR: " + err.Error()
		zres.Warnings = append(slices.Clone(zres.Warnings),
			fmt.Sprintf("failed to convert to timezone %s: %v", name, err))
		return zres, nil
	}
	zres.LocalTime = lt
	return zres, nil
}

// CompareSystemClock compares the system clock against the latency
// compensated consensus time.
func (o *Oracle) CompareSystemClock(ctx context.Context, mode Mode) (ClockComparison, error) {
	res, err := o.TimeUTC(ctx, mode, true)
	if err != nil {
		return ClockComparison{}, err
	}
	return ClockComparison{
		SystemTime:       res.SystemTime,
		TrustedTime:      res.ISO8601Time,
		DeltaMs:          res.SystemDeltaMs,
		EstimatedErrorMs: res.EstimatedErrorMs,
		Status:           ClassifyDrift(res.SystemDeltaMs),
	}, nil
}
