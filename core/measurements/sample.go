package measurements

import (
	"time"
)

// FailureKind classifies why a single server query produced no sample.
type FailureKind int

const (
	Timeout FailureKind = iota + 1
	NameResolution
	Transport
	MalformedResponse
)

func (k FailureKind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case NameResolution:
		return "dns_error"
	case Transport:
		return "network_error"
	case MalformedResponse:
		return "parse_error"
	default:
		return "unknown"
	}
}

type Failure struct {
	Kind FailureKind
	Msg  string
}

func (f *Failure) Error() string {
	return f.Kind.String() + ": " + f.Msg
}

// Sample is the outcome of querying one server. Exactly one of the
// success fields (Timestamp, RTT, Stratum) or Failure is meaningful.
type Sample struct {
	Server string

	// Timestamp is the local receive time corrected by the measured
	// clock offset.
	Timestamp time.Time
	RTT       time.Duration
	Stratum   uint8

	Failure *Failure
}

func Succeeded(server string, timestamp time.Time, rtt time.Duration, stratum uint8) Sample {
	return Sample{
		Server:    server,
		Timestamp: timestamp,
		RTT:       rtt,
		Stratum:   stratum,
	}
}

func Failed(server string, kind FailureKind, err error) Sample {
	return Sample{
		Server: server,
		Failure: &Failure{
			Kind: kind,
			Msg:  err.Error(),
		},
	}
}

func (s *Sample) Success() bool {
	return s.Failure == nil
}
