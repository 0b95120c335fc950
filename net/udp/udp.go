package udp

import (
	"errors"
)

var (
	errUnexpectedData    = errors.New("failed to read timestamp: unexpected data")
	errTimestampNotFound = errors.New("failed to read timestamp: not found")
	errNotSupported      = errors.New("kernel timestamping not supported on this platform")
)
