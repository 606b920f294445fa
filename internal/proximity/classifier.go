// Package proximity infers whether a tag is inside the basket from its
// signal strength.
//
// Classify maps a single reading to a band; Monitor runs the per-device
// goal state machine on top of it.
package proximity

import "fmt"

// Reading is a signal strength sample in dBm. Zero or positive values mean
// the link reported no usable signal.
type Reading int

// Band is a discrete proximity label derived from a Reading
type Band int

const (
	NoSignal Band = iota
	Excellent
	VeryGood
	Good
	Low
	VeryLow
	Unclassified
)

// Band thresholds in dBm. Each band covers [threshold, upper) where upper is
// the threshold of the next stronger band.
const (
	excellentFloor Reading = -50
	veryGoodFloor  Reading = -60
	goodFloor      Reading = -70
	lowFloor       Reading = -80
)

var bandNames = [...]string{
	NoSignal:  "No signal",
	Excellent: "Excellent",
	VeryGood:  "Very good",
	Good:      "Good",
	Low:       "Low",
	VeryLow:   "Very low",
}

func (b Band) String() string {
	if b < NoSignal || b >= Unclassified {
		return "Unclassified"
	}
	return bandNames[b]
}

// Classify returns the band of r and whether r counts as a goal.
// Only the Excellent band, [-50, 0), is a goal.
func Classify(r Reading) (Band, bool) {
	switch {
	case r >= 0:
		return NoSignal, false
	case r >= excellentFloor:
		return Excellent, true
	case r >= veryGoodFloor:
		return VeryGood, false
	case r >= goodFloor:
		return Good, false
	case r >= lowFloor:
		return Low, false
	default:
		return VeryLow, false
	}
}

// IsGoal reports whether r is inside the goal zone
func IsGoal(r Reading) bool {
	_, goal := Classify(r)
	return goal
}

// Describe formats r the way it is logged, e.g. "-45 (Excellent)".
func Describe(r Reading) string {
	band, _ := Classify(r)
	return fmt.Sprintf("%d (%s)", int(r), band)
}
