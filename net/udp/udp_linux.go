//go:build linux

package udp

import (
	"unsafe"

	"net"
	"time"

	"golang.org/x/sys/unix"
)

// EnableTimestamping requests software receive timestamps
// (SCM_TIMESTAMPNS) from the kernel for datagrams read from conn.
func EnableTimestamping(conn *net.UDPConn) error {
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		res.err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1)
	})
	if err != nil {
		return err
	}
	return res.err
}

func TimestampLen() int {
	return unix.CmsgSpace(int(unsafe.Sizeof(unix.Timespec{})))
}

func TimestampFromOOBData(oob []byte) (time.Time, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return time.Time{}, errUnexpectedData
	}
	for _, m := range msgs {
		if m.Header.Level == unix.SOL_SOCKET && m.Header.Type == unix.SCM_TIMESTAMPNS {
			if len(m.Data) < int(unsafe.Sizeof(unix.Timespec{})) {
				return time.Time{}, errUnexpectedData
			}
			ts := (*unix.Timespec)(unsafe.Pointer(&m.Data[0]))
			return time.Unix(ts.Unix()).UTC(), nil
		}
	}
	return time.Time{}, errTimestampNotFound
}
