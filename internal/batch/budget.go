package batch

import (
	"math"
	"time"
)

// DefaultMultiplier scales the max duration into the reporting wait budget
const DefaultMultiplier = 1.5

// Budget returns ceil(multiplier * maxDuration) units, truncated to whole
// milliseconds
func Budget(multiplier float64, maxDuration int, unit time.Duration) time.Duration {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	if unit <= 0 {
		unit = time.Second
	}
	units := math.Ceil(multiplier * float64(maxDuration))
	return (time.Duration(units) * unit).Truncate(time.Millisecond)
}
