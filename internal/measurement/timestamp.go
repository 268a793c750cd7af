package measurement

import (
	"time"
)

// Timestamp is a point in time, as seconds and nanoseconds since UNIX epoch.
type Timestamp struct {
	Secs  uint64
	Nanos uint32
}

// Now returns current system time.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime creates Timestamp from [time.Time].
//
// Times before UNIX epoch are clamped to zero.
func FromTime(t time.Time) Timestamp {
	nanos := t.UnixNano()
	if nanos < 0 {
		return Timestamp{}
	}
	return Timestamp{
		Secs:  uint64(nanos / int64(time.Second)),
		Nanos: uint32(nanos % int64(time.Second)),
	}
}

// Time returns Timestamp as [time.Time].
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Secs), int64(t.Nanos))
}

// UnixNano returns number of nanoseconds since UNIX epoch.
func (t Timestamp) UnixNano() uint64 {
	return t.Secs*uint64(time.Second) + uint64(t.Nanos)
}

// IsZero whether t is zero value.
func (t Timestamp) IsZero() bool {
	return t == Timestamp{}
}
