package raceengine

import (
	"math"
	"sort"
)

// olsFit fits y = intercept + slope*x by ordinary least squares. Points
// sharing an x value are averaged before fitting. A sample with fewer than
// two distinct x values has no estimable slope and fits a flat line through
// the mean.
func olsFit(xs, ys []float64) (slope, intercept float64) {
	if len(xs) == 0 {
		return 0, 0
	}

	sums := make(map[float64]float64)
	counts := make(map[float64]int)

	for i, x := range xs {
		sums[x] += ys[i]
		counts[x]++
	}

	var distinctX []float64

	for x := range sums {
		distinctX = append(distinctX, x)
	}

	sort.Float64s(distinctX)

	var meanX, meanY float64

	for _, x := range distinctX {
		meanX += x
		meanY += sums[x] / float64(counts[x])
	}

	n := float64(len(distinctX))
	meanX /= n
	meanY /= n

	if len(distinctX) < 2 {
		return 0, meanY
	}

	var sxx, sxy float64

	for _, x := range distinctX {
		y := sums[x] / float64(counts[x])
		sxx += (x - meanX) * (x - meanX)
		sxy += (x - meanX) * (y - meanY)
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX

	return slope, intercept
}

// monotoneDegradationFit fits the tyre degradation trend of lap time
// residuals against tyre age. Degradation never improves a tyre, so the
// slope is clamped at zero; with a clamped slope the best flat fit is the
// sample mean.
func monotoneDegradationFit(tyreAges []float64, residuals []float64) (slope, freshTyrePace float64) {
	slope, intercept := olsFit(tyreAges, residuals)

	if slope < 0 {
		slope = 0

		var mean float64

		for _, r := range residuals {
			mean += r
		}

		intercept = mean / float64(len(residuals))
	}

	return slope, intercept
}

// percentile computes the p-th percentile (0..100) of a sample using linear
// interpolation between order statistics.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)

	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	var sum float64

	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)

	var sum float64

	for _, v := range values {
		sum += (v - m) * (v - m)
	}

	return math.Sqrt(sum / float64(len(values)))
}

func compareFloatsTolerance(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
