//go:build !linux

package udp

import (
	"net"
	"time"
)

func EnableTimestamping(conn *net.UDPConn) error {
	return errNotSupported
}

func TimestampLen() int {
	return 0
}

func TimestampFromOOBData(oob []byte) (time.Time, error) {
	return time.Time{}, errTimestampNotFound
}
