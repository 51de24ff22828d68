package model

import (
	"math"
	"time"

	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
	"github.com/m-lab/rspeed/pkg/version"
)

// Result is the archival data format for a single download or upload subtest.
// It is computed by the client from a completed Record.
type Result struct {
	// GitShortCommit is the Git commit (short form) of the running client code.
	GitShortCommit string
	// Version is the symbolic version (if any) of the running client code.
	Version string

	// Kind is the subtest kind (download or upload).
	Kind string
	// TestID identifies the session.
	TestID string
	// TestNumber is the cycle this subtest belongs to.
	TestNumber int64
	// Server is the server base URL.
	Server string
	// ExternalIP is the client address as seen by the server.
	ExternalIP string

	// Time is the client timestamp at which the subtest started.
	Time time.Time

	// Length is the requested payload length.
	Length int64
	// ReceiveLength is the number of bytes the receiving side counted.
	ReceiveLength int64

	// Megabytes is the transferred amount, truncated to 1000-byte units.
	Megabytes float64
	// Seconds is the measured elapsed time.
	Seconds float64
	// MegabitsPerSecond is the throughput, rounded to 3 decimals.
	MegabitsPerSecond float64

	// NextLength is the length chosen for the next subtest of this kind.
	NextLength int64
}

// NewResult returns a Result stamped with the running code version.
func NewResult(kind spec.SubtestKind) Result {
	return Result{
		GitShortCommit: prometheusx.GitShortCommit,
		Version:        version.Version,
		Kind:           string(kind),
	}
}

// Megabytes truncates n bytes to 1000-byte units and returns megabytes.
func Megabytes(n int64) float64 {
	return float64(n/1000) / 1000
}

// MegabitsPerSecond returns 8*megabytes/seconds rounded to 3 decimals. A
// non-positive duration yields zero.
func MegabitsPerSecond(megabytes, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return math.Round(spec.BitsPerDataByte*megabytes/seconds*1000) / 1000
}
