package raceengine

import (
	"fmt"
	"sort"
)

type PaceMode int

const (
	PaceModeRaw PaceMode = iota
	PaceModeFuelAdjusted
	PaceModeCleanAir
)

func (p PaceMode) String() string {
	switch p {
	case PaceModeRaw:
		return "raw"
	case PaceModeFuelAdjusted:
		return "fuel_adjusted"
	case PaceModeCleanAir:
		return "clean_air"
	default:
		return "unknown"
	}
}

// ParsePaceMode maps a request mode string onto a PaceMode.
func ParsePaceMode(mode string) (PaceMode, error) {
	switch mode {
	case "raw":
		return PaceModeRaw, nil
	case "fuel_adjusted", "":
		return PaceModeFuelAdjusted, nil
	case "clean_air":
		return PaceModeCleanAir, nil
	default:
		return 0, fmt.Errorf("%w: unknown pace mode %q", ErrInvalidRequest, mode)
	}
}

const degradationModelVersion = "ols-monotone/1"

// PaceMetric is a derived, per-request pace figure. Never persisted.
type PaceMetric struct {
	DriverID         string  `json:"driver"`
	StintID          int     `json:"stint,omitempty"`
	MeanAdjustedPace float64 `json:"mean_adjusted_pace_s"`
	SampleSize       int     `json:"sample_size"`
	AdjustmentBasis  string  `json:"adjustment_basis"`
}

type PaceCalculator struct {
	fuelTimeCoeffSKG float64
	minCleanLaps     int

	filter *CleanAirFilter
	logger Logger
}

func NewPaceCalculator(config EngineConfig, filter *CleanAirFilter, logger Logger) *PaceCalculator {
	return &PaceCalculator{
		fuelTimeCoeffSKG: config.FuelTimeCoeffSKG,
		minCleanLaps:     config.MinCleanLaps,
		filter:           filter,
		logger:           logger,
	}
}

func (p *PaceCalculator) adjustmentBasis(mode PaceMode) string {
	switch mode {
	case PaceModeRaw:
		return "none"
	default:
		return fmt.Sprintf("fuel:linear@%.3fs/kg deg:%s", p.fuelTimeCoeffSKG, degradationModelVersion)
	}
}

// ComputePace derives one PaceMetric per driver from a normalized lap table.
// Deterministic for identical input and configuration.
func (p *PaceCalculator) ComputePace(laps []Lap, mode PaceMode) ([]PaceMetric, error) {
	perStint, err := p.ComputeStintPace(laps, mode)

	if err != nil {
		return nil, err
	}

	type aggregate struct {
		weightedPace float64
		sampleSize   int
	}

	byDriver := make(map[string]*aggregate)

	var order []string

	for _, metric := range perStint {
		agg, ok := byDriver[metric.DriverID]

		if !ok {
			agg = &aggregate{}
			byDriver[metric.DriverID] = agg
			order = append(order, metric.DriverID)
		}

		agg.weightedPace += metric.MeanAdjustedPace * float64(metric.SampleSize)
		agg.sampleSize += metric.SampleSize
	}

	sort.Strings(order)

	metrics := make([]PaceMetric, 0, len(order))

	for _, driverID := range order {
		agg := byDriver[driverID]

		metrics = append(metrics, PaceMetric{
			DriverID:         driverID,
			MeanAdjustedPace: agg.weightedPace / float64(agg.sampleSize),
			SampleSize:       agg.sampleSize,
			AdjustmentBasis:  p.adjustmentBasis(mode),
		})
	}

	return metrics, nil
}

// ComputeStintPace is ComputePace at stint granularity.
func (p *PaceCalculator) ComputeStintPace(laps []Lap, mode PaceMode) ([]PaceMetric, error) {
	var classification map[LapKey]bool

	if mode == PaceModeCleanAir {
		classification = p.filter.Classify(laps)
	}

	var metrics []PaceMetric

	for _, stint := range BuildStints(laps) {
		sample := stint.Laps

		if mode == PaceModeCleanAir {
			var clean []Lap

			for _, lap := range sample {
				if classification[lap.Key()] {
					clean = append(clean, lap)
				}
			}

			if len(clean) < p.minCleanLaps {
				return nil, fmt.Errorf("%w: %d clean laps for driver %s stint %d, need %d", ErrInsufficientSample, len(clean), stint.DriverID, stint.StintID, p.minCleanLaps)
			}

			sample = clean
		}

		if len(sample) == 0 {
			continue
		}

		metric := PaceMetric{
			DriverID:        stint.DriverID,
			StintID:         stint.StintID,
			SampleSize:      len(sample),
			AdjustmentBasis: p.adjustmentBasis(mode),
		}

		if mode == PaceModeRaw {
			var sum float64

			for _, lap := range sample {
				sum += lap.LapTime
			}

			metric.MeanAdjustedPace = sum / float64(len(sample))
		} else {
			tyreAges := make([]float64, len(sample))
			residuals := make([]float64, len(sample))

			for i, lap := range sample {
				tyreAges[i] = float64(lap.TyreAge)
				residuals[i] = lap.LapTime - lap.FuelLoadKG*p.fuelTimeCoeffSKG
			}

			slope, freshTyrePace := monotoneDegradationFit(tyreAges, residuals)

			p.logger.Debugf("Driver %s stint %d: degradation %.4fs/lap, fresh tyre pace %.3fs over %d laps (%s)", stint.DriverID, stint.StintID, slope, freshTyrePace, len(sample), mode)

			metric.MeanAdjustedPace = freshTyrePace
		}

		metrics = append(metrics, metric)
	}

	return metrics, nil
}
