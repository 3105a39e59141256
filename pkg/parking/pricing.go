package parking

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

const nanosecondsPerHour = uint64(time.Hour)

// Price bills the fractional number of hours between start and end at rate.
// The result is rounded to whole cents, half away from zero. Windows longer
// than MaxSessionDuration and rates above MaxHourlyRateCents are rejected.
func Price(start time.Time, end time.Time, rate HourlyRateCents) (AmountCents, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidDuration, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if end.After(start.Add(MaxSessionDuration)) {
		return 0, fmt.Errorf("%w: window from %s to %s exceeds %s", ErrInvalidDuration, start.Format(time.RFC3339), end.Format(time.RFC3339), MaxSessionDuration)
	}
	if err := validateHourlyRate(rate.Int64()); err != nil {
		return 0, err
	}
	high, low := bits.Mul64(uint64(end.Sub(start)), uint64(rate))
	if high >= nanosecondsPerHour {
		return 0, fmt.Errorf("%w: price overflows", ErrInvalidAmountCents)
	}
	cents, remainder := bits.Div64(high, low, nanosecondsPerHour)
	if remainder >= nanosecondsPerHour-remainder {
		cents++
	}
	if cents > math.MaxInt64 {
		return 0, fmt.Errorf("%w: price overflows", ErrInvalidAmountCents)
	}
	return AmountCents(cents), nil
}
