package convert

import "time"

const (
	DefaultDateTimeLayout = "2006-01-02T15:04:05"
	DefaultOffsetLayout   = time.RFC3339Nano
)

// TimeOffset is a point in time whose UTC offset is part of its value.
// Unlike time.Time properties, it is not normalized to UTC when indexed.
type TimeOffset struct {
	time.Time
}

func NewTimeOffset(t time.Time) TimeOffset {
	return TimeOffset{Time: t}
}

// ticksAtUnixEpoch is the number of 100ns intervals between 0001-01-01 and 1970-01-01.
const ticksAtUnixEpoch = 621355968000000000

// Ticks returns t as 100-nanosecond intervals since 0001-01-01T00:00:00 UTC.
func Ticks(t time.Time) int64 {
	t = t.UTC()
	return t.Unix()*10_000_000 + int64(t.Nanosecond()/100) + ticksAtUnixEpoch
}

// WallTicks counts ticks on the clock face of t, ignoring its zone.
func WallTicks(t time.Time) int64 {
	_, offset := t.Zone()
	return Ticks(t) + int64(offset)*10_000_000
}

func FromTicks(ticks int64) time.Time {
	rel := ticks - ticksAtUnixEpoch
	sec := rel / 10_000_000
	rem := rel % 10_000_000
	if rem < 0 {
		sec--
		rem += 10_000_000
	}
	return time.Unix(sec, rem*100).UTC()
}
