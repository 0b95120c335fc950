package timebase

import (
	"time"
)

// Clock is the source of system clock readings. Nothing in this module
// ever steps or slews the clock, it is only read.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Or returns clk, or the system clock if clk is nil.
func Or(clk Clock) Clock {
	if clk == nil {
		return SystemClock{}
	}
	return clk
}
