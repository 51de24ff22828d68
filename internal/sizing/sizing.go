// Package sizing computes the payload length of the next subtest so that its
// duration stays close to a desired value.
package sizing

import (
	"math"
	"time"

	"github.com/m-lab/rspeed/pkg/cycle1/spec"
)

// Params configures the length recalculation.
type Params struct {
	// Desired is the target subtest duration.
	Desired time.Duration
	// MaxRatio sets the dead-band [Desired/MaxRatio, Desired*MaxRatio] in
	// which the length is left unchanged. Must be >= 1.
	MaxRatio float64
	// MinLength and MaxLength bound every returned length.
	MinLength int64
	MaxLength int64
	// Quantum is the granularity of scaled lengths.
	Quantum int64
}

// Default returns the Params from the cycle1 spec.
func Default() Params {
	return Params{
		Desired:   spec.DesiredDuration,
		MaxRatio:  spec.MaxRatio,
		MinLength: spec.MinLength,
		MaxLength: spec.MaxLength,
		Quantum:   spec.LengthQuantum,
	}
}

// Next returns the length for the next subtest given the previous length and
// the previous measured duration in seconds.
//
// Durations inside the dead-band keep prev. Everything else is scaled
// proportionally and rounded to the nearest Quantum. The result is always
// clamped to [MinLength, MaxLength].
func (p Params) Next(prev int64, seconds float64) int64 {
	desired := p.Desired.Seconds()
	// A zero or near-zero measurement would blow up the ratio below.
	seconds = math.Max(seconds, desired/100)

	if seconds >= desired/p.MaxRatio && seconds <= desired*p.MaxRatio {
		return Clamp(prev, p.MinLength, p.MaxLength)
	}

	scaled := float64(prev) * desired / seconds
	if p.Quantum > 0 {
		q := float64(p.Quantum)
		scaled = math.Round(scaled/q) * q
	}
	// Clamp before converting: huge reported lengths overflow int64.
	scaled = math.Min(math.Max(scaled, float64(p.MinLength)), float64(p.MaxLength))
	return Clamp(int64(scaled), p.MinLength, p.MaxLength)
}

// WithDefaults returns p with every zero field replaced by its Default value.
func (p Params) WithDefaults() Params {
	d := Default()
	if p.Desired <= 0 {
		p.Desired = d.Desired
	}
	if p.MaxRatio < 1 {
		p.MaxRatio = d.MaxRatio
	}
	if p.MinLength <= 0 {
		p.MinLength = d.MinLength
	}
	if p.MaxLength <= 0 {
		p.MaxLength = d.MaxLength
	}
	if p.Quantum <= 0 {
		p.Quantum = d.Quantum
	}
	return p
}

// Clamp limits length to [min, max].
func Clamp(length, min, max int64) int64 {
	if length < min {
		return min
	}
	if length > max {
		return max
	}
	return length
}

// ClampUpload applies the hard upload ceiling to length.
func ClampUpload(length, maxUpload int64) int64 {
	if length > maxUpload {
		return maxUpload
	}
	return length
}
