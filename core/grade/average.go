package grade

import "math"

// Component weights of the Ministry of Education grading scheme.
const (
	weightRegular = 1
	weightMidterm = 2
	weightFinal   = 3
)

// ComputeSubjectAverage returns the weighted average of the components of one
// (student, subject, reporting period). A summary component with a value is returned as is.
// The second result is false when nothing can be averaged.
//
// Values are summed in tenths so that halves round up exactly: [7, 7.5] gives 7.3.
// If several midterm or final components are given, the last one counts.
func ComputeSubjectAverage(components []Component) (float64, bool) {
	var (
		regularTenths, regularCount int
		midterm, final              *float64
	)
	for _, c := range components {
		if c.Value == nil {
			continue
		}
		switch c.Type {
		case TypeSummary:
			return *c.Value, true
		case TypeRegular:
			regularTenths += toTenths(*c.Value)
			regularCount++
		case TypeMidterm:
			midterm = c.Value
		case TypeFinal:
			final = c.Value
		}
	}

	total := regularTenths * weightRegular
	weight := regularCount * weightRegular
	if midterm != nil {
		total += toTenths(*midterm) * weightMidterm
		weight += weightMidterm
	}
	if final != nil {
		total += toTenths(*final) * weightFinal
		weight += weightFinal
	}
	if weight == 0 {
		return 0, false
	}
	return fromTenths(divRoundHalfUp(total, weight)), true
}

// ComputeMidtermFinalAverage returns round((midterm+final)/2, 1), ignoring regular grades.
// It is used where only the midterm and final scores are submitted, and is false unless both are present.
func ComputeMidtermFinalAverage(components []Component) (float64, bool) {
	var midterm, final *float64
	for _, c := range components {
		if c.Value == nil {
			continue
		}
		switch c.Type {
		case TypeMidterm:
			midterm = c.Value
		case TypeFinal:
			final = c.Value
		}
	}
	if midterm == nil || final == nil {
		return 0, false
	}
	return fromTenths(divRoundHalfUp(toTenths(*midterm)+toTenths(*final), 2)), true
}

// RoundHalfUp rounds v to the given number of decimal places, halves away from zero.
func RoundHalfUp(v float64, places int) float64 {
	p := math.Pow10(places)
	// 1e-9 absorbs representation error such as 7.25*10 = 72.49999...
	if v < 0 {
		return -math.Floor(-v*p+0.5+1e-9) / p
	}
	return math.Floor(v*p+0.5+1e-9) / p
}

func toTenths(v float64) int {
	return int(math.Round(v * 10))
}

func fromTenths(n int) float64 {
	return float64(n) / 10
}

// divRoundHalfUp divides non-negative integers, rounding halves up.
func divRoundHalfUp(n, d int) int {
	return (2*n + d) / (2 * d)
}
