package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"example.com/time-oracle/base/timebase"
	"example.com/time-oracle/core/measurements"
	"example.com/time-oracle/net/ip"
	"example.com/time-oracle/net/ntp"
	"example.com/time-oracle/net/udp"
)

// Querier produces exactly one sample per call. Implementations never
// return errors: every failure is reported inside the sample.
type Querier interface {
	Query(ctx context.Context, server string, timeout time.Duration) measurements.Sample
}

// IPClient speaks NTPv4 client mode over UDP. It holds no per-query
// state, so one instance may serve any number of concurrent queries.
type IPClient struct {
	Log *zap.Logger

	// Clock provides the client transmit and receive timestamps. If nil,
	// the system clock is used and receive timestamps are taken from the
	// kernel where supported.
	Clock timebase.Clock

	Resolver *net.Resolver
}

var _ Querier = (*IPClient)(nil)

var (
	errWrite                  = errors.New("failed to write packet: short write")
	errNoAddress              = errors.New("no address found")
	errUnexpectedPacketFlags  = errors.New("failed to read packet: unexpected flags")
	errUnexpectedPacketSource = errors.New("failed to read packet: unexpected source")
	errUnexpectedPacket       = errors.New("failed to read packet: unexpected origin timestamp")
)

func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// serverAddress splits an optional port off server. Bare IPv6 literals
// are accepted without brackets.
func serverAddress(server string) (host string, port uint16) {
	host, p, err := net.SplitHostPort(server)
	if err != nil {
		return server, ntp.ServerPort
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return server, ntp.ServerPort
	}
	return host, uint16(n)
}

func (c *IPClient) resolve(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), nil
	}
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, ok := ip.Preferred(addrs)
	if !ok {
		return netip.Addr{}, errNoAddress
	}
	return addr, nil
}

func resolveFailureKind(ctx context.Context, err error) measurements.FailureKind {
	if ctx.Err() != nil {
		return measurements.Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTimeout {
		return measurements.Timeout
	}
	return measurements.NameResolution
}

func ioFailureKind(err error) measurements.FailureKind {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return measurements.Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return measurements.Timeout
	}
	return measurements.Transport
}

func (c *IPClient) Query(ctx context.Context, server string, timeout time.Duration) measurements.Sample {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	log := loggerOrNop(c.Log).With(zap.String("server", server))

	s := c.query(ctx, log, server)
	if !s.Success() {
		log.Debug("query failed",
			zap.Stringer("kind", s.Failure.Kind),
			zap.String("error", s.Failure.Msg),
		)
	}
	mtrcs.observe(&s)
	return s
}

func (c *IPClient) query(ctx context.Context, log *zap.Logger, server string) measurements.Sample {
	host, port := serverAddress(server)
	addr, err := c.resolve(ctx, host)
	if err != nil {
		return measurements.Failed(server, resolveFailureKind(ctx, err), err)
	}
	remoteAddr := netip.AddrPortFrom(addr, port)

	network := "udp6"
	if addr.Is4() {
		network = "udp4"
	}
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return measurements.Failed(server, measurements.Transport, err)
	}
	defer conn.Close()
	deadline, deadlineIsSet := ctx.Deadline()
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return measurements.Failed(server, measurements.Transport, err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	kernelTimestamps := c.Clock == nil
	if kernelTimestamps {
		err = udp.EnableTimestamping(conn)
		if err != nil {
			log.Debug("failed to enable timestamping", zap.Error(err))
			kernelTimestamps = false
		}
	}
	clk := timebase.Or(c.Clock)

	// Read buffer is larger than a packet so oversized replies are
	// detected rather than silently truncated.
	buf := make([]byte, 2*ntp.PacketLen)

	cTxTime := clk.Now()

	ntpreq := ntp.Packet{}
	ntpreq.SetVersion(ntp.VersionMax)
	ntpreq.SetMode(ntp.ModeClient)
	ntpreq.TransmitTime = ntp.Time64FromTime(cTxTime)

	ntp.EncodePacket(&buf, &ntpreq)

	n, err := conn.WriteToUDPAddrPort(buf, remoteAddr)
	if err != nil {
		return measurements.Failed(server, ioFailureKind(err), err)
	}
	if n != len(buf) {
		return measurements.Failed(server, measurements.Transport, errWrite)
	}
	mtrcs.reqsSent.Inc()

	var oob []byte
	if kernelTimestamps {
		oob = make([]byte, udp.TimestampLen())
	}
	buf = buf[:cap(buf)]
	n, oobn, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(buf, oob)
	cRxTime := clk.Now()
	if err != nil {
		return measurements.Failed(server, ioFailureKind(err), err)
	}
	if flags != 0 {
		return measurements.Failed(server, measurements.MalformedResponse, errUnexpectedPacketFlags)
	}
	if kernelTimestamps {
		ts, err := udp.TimestampFromOOBData(oob[:oobn])
		if err != nil {
			log.Debug("failed to read packet rx timestamp", zap.Error(err))
		} else {
			cRxTime = ts
		}
	}
	buf = buf[:n]

	if !ip.SameHost(srcAddr.Addr(), remoteAddr.Addr()) || srcAddr.Port() != remoteAddr.Port() {
		return measurements.Failed(server, measurements.MalformedResponse, errUnexpectedPacketSource)
	}

	var ntpresp ntp.Packet
	err = ntp.DecodePacket(&ntpresp, buf)
	if err != nil {
		return measurements.Failed(server, measurements.MalformedResponse,
			fmt.Errorf("failed to decode packet payload: %w", err))
	}
	if ntpresp.OriginTime != ntpreq.TransmitTime {
		return measurements.Failed(server, measurements.MalformedResponse, errUnexpectedPacket)
	}
	err = ntp.ValidateResponseMetadata(&ntpresp)
	if err != nil {
		return measurements.Failed(server, measurements.MalformedResponse,
			fmt.Errorf("failed to validate packet payload: %w", err))
	}

	log.Debug("received response",
		zap.Time("at", cRxTime),
		zap.Stringer("from", remoteAddr),
		zap.Object("data", ntp.PacketMarshaler{Pkt: &ntpresp}),
	)

	t0 := cTxTime
	t1 := ntp.TimeFromTime64(ntpresp.ReceiveTime)
	t2 := ntp.TimeFromTime64(ntpresp.TransmitTime)
	t3 := cRxTime

	err = ntp.ValidateResponseTimestamps(t0, t1, t2, t3)
	if err != nil {
		return measurements.Failed(server, measurements.MalformedResponse, err)
	}

	off := ntp.ClockOffset(t0, t1, t2, t3)
	rtd := ntp.RoundTripDelay(t0, t1, t2, t3)

	log.Debug("evaluated response",
		zap.Duration("clock offset", off),
		zap.Duration("round trip delay", rtd),
	)

	return measurements.Succeeded(server, t3.Add(off), rtd, ntpresp.Stratum)
}
