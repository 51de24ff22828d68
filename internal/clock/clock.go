// Package clock converts between wall-clock readings and the millisecond
// timestamps used on the wire.
package clock

import "time"

const (
	layout       = "2006-01-02 15:04:05"
	layoutMillis = "2006-01-02 15:04:05.000"
)

// Now returns the current time as milliseconds since the Unix epoch.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Time converts ms to a local time.Time. Zero means now.
func Time(ms int64) time.Time {
	if ms == 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

// FormatLocal formats ms as YYYY-MM-DD HH:MM:SS in the local time zone.
// Zero means now.
func FormatLocal(ms int64) string {
	return Time(ms).Local().Format(layout)
}

// FormatLocalMillis is like FormatLocal with millisecond precision.
func FormatLocalMillis(ms int64) string {
	return Time(ms).Local().Format(layoutMillis)
}

// Seconds returns the time between two millisecond timestamps in seconds.
func Seconds(begin, end int64) float64 {
	return float64(end-begin) / 1000
}
