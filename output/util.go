package output

import "time"

// int64ToUint64 safely converts an int64 timestamp to uint64.
// UnixNano() returns int64 but OTLP protobuf requires uint64. Timestamps
// are always non-negative, so the conversion is safe; the guard satisfies
// static analysis tools.
func int64ToUint64(nanos int64) uint64 {
	if nanos < 0 {
		return 0
	}
	return uint64(nanos)
}

// timeToUnixNanoUint64 converts a time.Time to uint64 nanoseconds.
func timeToUnixNanoUint64(t time.Time) uint64 {
	return int64ToUint64(t.UnixNano())
}
