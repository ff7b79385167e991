package raceengine

import (
	"fmt"
	"sort"
)

// LapTimeDistribution summarizes one driver's lap time sample in the shape
// used for box plots: quartiles, 1.5 IQR whiskers and the laps outside them.
type LapTimeDistribution struct {
	DriverID     string    `json:"driver"`
	Median       float64   `json:"median_s"`
	Q1           float64   `json:"q1_s"`
	Q3           float64   `json:"q3_s"`
	IQR          float64   `json:"iqr_s"`
	LowerWhisker float64   `json:"lower_whisker_s"`
	UpperWhisker float64   `json:"upper_whisker_s"`
	Outliers     []float64 `json:"outliers_s"`
	SampleSize   int       `json:"sample_size"`
}

type DistributionAggregator struct {
	minSampleSize int
}

func NewDistributionAggregator(config EngineConfig) *DistributionAggregator {
	return &DistributionAggregator{
		minSampleSize: config.MinDistributionN,
	}
}

// Summarize computes the distribution of one driver's lap times. Pure and
// deterministic for a given sample.
func (d *DistributionAggregator) Summarize(driverID string, lapTimes []float64) (*LapTimeDistribution, error) {
	if len(lapTimes) < d.minSampleSize {
		return nil, fmt.Errorf("%w: %d laps for driver %s, need %d", ErrInsufficientSample, len(lapTimes), driverID, d.minSampleSize)
	}

	sorted := make([]float64, len(lapTimes))
	copy(sorted, lapTimes)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	dist := &LapTimeDistribution{
		DriverID:     driverID,
		Median:       percentile(sorted, 50),
		Q1:           q1,
		Q3:           q3,
		IQR:          iqr,
		LowerWhisker: q1 - 1.5*iqr,
		UpperWhisker: q3 + 1.5*iqr,
		Outliers:     []float64{},
		SampleSize:   len(sorted),
	}

	for _, t := range sorted {
		if t < dist.LowerWhisker || t > dist.UpperWhisker {
			dist.Outliers = append(dist.Outliers, t)
		}
	}

	return dist, nil
}

// SummarizeAll groups a lap table by driver and summarizes each driver's
// sample, ordered by driver.
func (d *DistributionAggregator) SummarizeAll(laps []Lap) ([]*LapTimeDistribution, error) {
	byDriver := make(map[string][]float64)

	var order []string

	for _, lap := range laps {
		if _, ok := byDriver[lap.DriverID]; !ok {
			order = append(order, lap.DriverID)
		}

		byDriver[lap.DriverID] = append(byDriver[lap.DriverID], lap.LapTime)
	}

	sort.Strings(order)

	distributions := make([]*LapTimeDistribution, 0, len(order))

	for _, driverID := range order {
		dist, err := d.Summarize(driverID, byDriver[driverID])

		if err != nil {
			return nil, err
		}

		distributions = append(distributions, dist)
	}

	return distributions, nil
}
