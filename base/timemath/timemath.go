package timemath

import (
	"math"
	"time"
)

const nanosecondsPerSecond = 1e9

// Duration converts seconds to a duration, rounding to the nearest
// nanosecond.
func Duration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * nanosecondsPerSecond))
}

// Milliseconds returns d as fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// DurationMilliseconds is the inverse of Milliseconds.
func DurationMilliseconds(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}

func Abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Seconds returns t as fractional seconds since the Unix epoch.
func Seconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/nanosecondsPerSecond
}
