// Package bus implements the bus simulation core: route progress, stop dwell,
// door state, passenger and inspector occupancy, and the choreography of the
// single actor walking through the door at any moment.
//
// The core is single-threaded. Callers serialize Advance and the Request*
// intents; nothing here blocks or locks.
package bus

import (
	"fmt"
	"strings"
)

const (
	StopDwellSeconds  = 10.0
	PassengerMoveTime = 1.6
	InspectorMoveTime = 2.4
	WorldSpeed        = 1.25 // world units per second
	Capacity          = 50
	SkinCount         = 18

	minSegmentLength = 1e-6
	minDuration      = 0.001
)

// FinePolicy selects the upper bound of the inspector's fine draw.
type FinePolicy int

const (
	// FineInclusive draws uniformly from [0, passengers].
	FineInclusive FinePolicy = iota
	// FineLegacyExclusive draws uniformly from [0, passengers).
	FineLegacyExclusive
)

func (p FinePolicy) String() string {
	switch p {
	case FineLegacyExclusive:
		return "exclusive"
	default:
		return "inclusive"
	}
}

// ParseFinePolicy accepts "inclusive" or "exclusive" (case-insensitive).
func ParseFinePolicy(s string) (FinePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inclusive":
		return FineInclusive, nil
	case "exclusive", "legacy":
		return FineLegacyExclusive, nil
	}
	return FineInclusive, fmt.Errorf("unknown fine policy %q", s)
}

// Tunables are the static knobs of a Simulation. All times are seconds.
type Tunables struct {
	StopDwell         float64
	PassengerMoveTime float64
	InspectorMoveTime float64
	WorldSpeed        float64
	// ParametricSpeed, when positive, advances the travel fraction at a fixed
	// rate per second regardless of segment length.
	ParametricSpeed float64
	Capacity        int
	SkinCount       int
	Fines           FinePolicy
	Cabin           Cabin
}

func DefaultTunables() Tunables {
	return Tunables{
		StopDwell:         StopDwellSeconds,
		PassengerMoveTime: PassengerMoveTime,
		InspectorMoveTime: InspectorMoveTime,
		WorldSpeed:        WorldSpeed,
		Capacity:          Capacity,
		SkinCount:         SkinCount,
		Fines:             FineInclusive,
		Cabin:             DefaultCabin(),
	}
}

// RandSource is the part of *math/rand.Rand the fine draw needs.
type RandSource interface {
	Intn(n int) int
}

// drawFines returns the number of fines issued when the inspector checks
// passengerOnly riders.
func drawFines(p FinePolicy, rng RandSource, passengerOnly int) int {
	if passengerOnly <= 0 {
		return 0
	}
	if p == FineLegacyExclusive {
		return rng.Intn(passengerOnly)
	}
	return rng.Intn(passengerOnly + 1)
}
