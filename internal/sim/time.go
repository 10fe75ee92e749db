package sim

import "fmt"

// Time is simulated time in picoseconds.
type Time int64

// Time units.
const (
	Picosecond  Time = 1
	Nanosecond  Time = 1000 * Picosecond
	Microsecond Time = 1000 * Nanosecond
)

// String renders t in the largest unit that divides it evenly.
func (t Time) String() string {
	switch {
	case t != 0 && t%Microsecond == 0:
		return fmt.Sprintf("%dus", t/Microsecond)
	case t != 0 && t%Nanosecond == 0:
		return fmt.Sprintf("%dns", t/Nanosecond)
	default:
		return fmt.Sprintf("%dps", int64(t))
	}
}
