package aggregate

import (
	"time"

	"github.com/wadc/flowsync/internal/model"
)

// Summer months, inclusive.
const (
	SummerStart = time.July
	SummerEnd   = time.September
)

// Stats computes the derived statistics of a month-slot array indexed by
// time.Month. Empty slots are left out of both averages. If either average
// has no months to divide by, both are 0. Peak is the largest value, or 0.
func Stats(months [13]*float64) (annual, summer, peak float64) {
	var (
		sumAnnual, sumSummer         float64
		missingAnnual, missingSummer int
	)
	for m := time.January; m <= time.December; m++ {
		v := months[m]
		isSummer := m >= SummerStart && m <= SummerEnd
		if v == nil {
			missingAnnual++
			if isSummer {
				missingSummer++
			}
			continue
		}
		sumAnnual += *v
		if *v > peak {
			peak = *v
		}
		if isSummer {
			sumSummer += *v
		}
	}

	annualN := 12 - missingAnnual
	summerN := int(SummerEnd-SummerStart) + 1 - missingSummer
	if annualN == 0 || summerN == 0 {
		return 0, 0, peak
	}
	return sumAnnual / float64(annualN), sumSummer / float64(summerN), peak
}

// Recompute writes the derived statistics of e from its month slots.
func Recompute(e *model.Entity) {
	annual, summer, peak := Stats(e.Months)
	e.AnnualAvg = &annual
	e.SummerFlow = &summer
	e.PeakFlow = &peak
}
