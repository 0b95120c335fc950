package oracle

import (
	"example.com/time-oracle/base/timemath"
	"example.com/time-oracle/core/measurements"
)

type SourceRecord struct {
	Server    string   `json:"server"`
	Success   bool     `json:"success"`
	Timestamp *float64 `json:"timestamp"`
	RTTMs     *float64 `json:"rtt_ms"`
	Stratum   *int     `json:"stratum"`
	Error     *string  `json:"error"`
	ErrorType *string  `json:"error_type"`
}

func newSourceRecord(s *measurements.Sample) SourceRecord {
	r := SourceRecord{Server: s.Server, Success: s.Success()}
	if s.Success() {
		ts := timemath.Seconds(s.Timestamp)
		rtt := timemath.Milliseconds(s.RTT)
		stratum := int(s.Stratum)
		r.Timestamp, r.RTTMs, r.Stratum = &ts, &rtt, &stratum
	} else {
		msg := s.Failure.Msg
		kind := s.Failure.Kind.String()
		r.Error, r.ErrorType = &msg, &kind
	}
	return r
}

type TimeResult struct {
	ISO8601Time        string         `json:"iso8601_time"`
	EpochMs            int64          `json:"epoch_ms"`
	SourcesUsed        int            `json:"sources_used"`
	TotalSources       int            `json:"total_sources"`
	ConsensusMethod    string         `json:"consensus_method"`
	EstimatedErrorMs   float64        `json:"estimated_error_ms"`
	SourceSamples      []SourceRecord `json:"source_samples"`
	Warnings           []string       `json:"warnings"`
	SystemTime         string         `json:"system_time"`
	SystemDeltaMs      float64        `json:"system_delta_ms"`
	QueryDurationMs    float64        `json:"query_duration_ms"`
	LatencyCompensated bool           `json:"latency_compensated"`
}

type TimezoneResult struct {
	TimeResult
	Timezone  string `json:"timezone"`
	LocalTime string `json:"local_time"`
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusDrift Status = "drift"
	StatusError Status = "error"
)

type ClockComparison struct {
	SystemTime       string  `json:"system_time"`
	TrustedTime      string  `json:"trusted_time"`
	DeltaMs          float64 `json:"delta_ms"`
	EstimatedErrorMs float64 `json:"estimated_error_ms"`
	Status           Status  `json:"status"`
}

// ClassifyDrift maps the signed system clock delta to a status tier.
func ClassifyDrift(deltaMs float64) Status {
	d := deltaMs
	if d < 0 {
		d = -d
	}
	switch {
	case d < 100:
		return StatusOK
	case d < 1000:
		return StatusDrift
	default:
		return StatusError
	}
}
