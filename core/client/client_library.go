package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	beevik "github.com/beevik/ntp"
	"go.uber.org/zap"

	"example.com/time-oracle/core/measurements"
)

// LibraryClient queries servers through github.com/beevik/ntp. It
// yields the same samples as IPClient, but additionally applies the
// library's response validation, which also rejects stratum 0
// (kiss-o'-death) and stratum 16.
type LibraryClient struct {
	Log *zap.Logger
}

var _ Querier = (*LibraryClient)(nil)

var errDeadlineExceeded = errors.New("query deadline exceeded before sending")

func libraryFailureKind(err error) measurements.FailureKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return measurements.Timeout
		}
		return measurements.NameResolution
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return measurements.Timeout
		}
		return measurements.Transport
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return measurements.Timeout
	}
	// Anything else is raised by the library while decoding or checking
	// the reply.
	return measurements.MalformedResponse
}

func (c *LibraryClient) Query(ctx context.Context, server string, timeout time.Duration) measurements.Sample {
	log := loggerOrNop(c.Log).With(zap.String("server", server))

	s := c.query(ctx, server, timeout)
	if s.Success() {
		log.Debug("evaluated response",
			zap.Time("timestamp", s.Timestamp),
			zap.Duration("round trip delay", s.RTT),
			zap.Uint8("stratum", s.Stratum),
		)
	} else {
		log.Debug("query failed",
			zap.Stringer("kind", s.Failure.Kind),
			zap.String("error", s.Failure.Msg),
		)
	}
	mtrcs.observe(&s)
	return s
}

func (c *LibraryClient) query(ctx context.Context, server string, timeout time.Duration) measurements.Sample {
	opts := beevik.QueryOptions{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return measurements.Failed(server, measurements.Timeout, errDeadlineExceeded)
		}
		if opts.Timeout <= 0 || remaining < opts.Timeout {
			opts.Timeout = remaining
		}
	}

	mtrcs.reqsSent.Inc()
	resp, err := beevik.QueryWithOptions(server, opts)
	if err != nil {
		return measurements.Failed(server, libraryFailureKind(err), err)
	}
	err = resp.Validate()
	if err != nil {
		return measurements.Failed(server, measurements.MalformedResponse,
			fmt.Errorf("failed to validate response: %w", err))
	}

	// resp.Time is the server transmit time t2, so t2 + rtt/2 equals the
	// local receive time t3 corrected by the clock offset.
	return measurements.Succeeded(server, resp.Time.Add(resp.RTT/2), resp.RTT, resp.Stratum)
}
