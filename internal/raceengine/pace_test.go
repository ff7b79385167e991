package raceengine

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestPaceCalculator(config EngineConfig) *PaceCalculator {
	filter := NewCleanAirFilter(config)

	return NewPaceCalculator(config, filter, logrus.New())
}

// lapsWithTrend builds one stint whose lap times are basePace plus a linear
// degradation trend plus the fuel effect of the given coefficient.
func lapsWithTrend(driverID string, numLaps int, basePace, degPerLap, fuelCoeff, startFuel, burnPerLap float64) []Lap {
	laps := make([]Lap, 0, numLaps)

	for i := 0; i < numLaps; i++ {
		fuel := startFuel - burnPerLap*float64(i)

		laps = append(laps, Lap{
			DriverID:   driverID,
			LapNumber:  i + 1,
			StintID:    1,
			Compound:   "MEDIUM",
			TyreAge:    i,
			FuelLoadKG: fuel,
			LapTime:    basePace + degPerLap*float64(i) + fuelCoeff*fuel,
		})
	}

	return laps
}

func TestComputePaceRaw(t *testing.T) {
	calculator := newTestPaceCalculator(DefaultEngineConfig())

	laps := []Lap{
		{DriverID: "HAM", LapNumber: 1, StintID: 1, LapTime: 90},
		{DriverID: "HAM", LapNumber: 2, StintID: 1, LapTime: 91},
		{DriverID: "HAM", LapNumber: 3, StintID: 1, LapTime: 92},
	}

	metrics, err := calculator.ComputePace(laps, PaceModeRaw)

	if err != nil {
		t.Fatalf("Expected no error, got %s", err)
	}

	if len(metrics) != 1 {
		t.Fatalf("Expected 1 metric, got %d", len(metrics))
	}

	if !compareFloatsTolerance(metrics[0].MeanAdjustedPace, 91) {
		t.Errorf("Expected raw pace 91, got %f", metrics[0].MeanAdjustedPace)
	}

	if metrics[0].SampleSize != 3 {
		t.Errorf("Expected sample size 3, got %d", metrics[0].SampleSize)
	}
}

func TestComputePaceFuelAdjusted(t *testing.T) {
	config := DefaultEngineConfig()
	calculator := newTestPaceCalculator(config)

	t.Run("RecoversFreshTyrePace", func(t *testing.T) {
		laps := lapsWithTrend("HAM", 10, 90, 0.08, config.FuelTimeCoeffSKG, 100, 1.6)

		metrics, err := calculator.ComputePace(laps, PaceModeFuelAdjusted)

		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}

		if !compareFloatsTolerance(metrics[0].MeanAdjustedPace, 90) {
			t.Errorf("Expected fuel and degradation corrected pace 90, got %f", metrics[0].MeanAdjustedPace)
		}
	})

	t.Run("UniformFuelShiftMovesPaceByCoefficient", func(t *testing.T) {
		laps := lapsWithTrend("HAM", 10, 90, 0.08, config.FuelTimeCoeffSKG, 100, 1.6)

		shifted := make([]Lap, len(laps))
		copy(shifted, laps)

		const shift = 10.0

		for i := range shifted {
			shifted[i].FuelLoadKG += shift
		}

		base, err := calculator.ComputePace(laps, PaceModeFuelAdjusted)

		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}

		moved, err := calculator.ComputePace(shifted, PaceModeFuelAdjusted)

		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}

		expected := base[0].MeanAdjustedPace - config.FuelTimeCoeffSKG*shift

		if !compareFloatsTolerance(moved[0].MeanAdjustedPace, expected) {
			t.Errorf("Expected shifted pace %f, got %f", expected, moved[0].MeanAdjustedPace)
		}
	})

	t.Run("ImprovingTrendClampedToFlat", func(t *testing.T) {
		// track evolution can make raw residuals improve with age; the
		// degradation model must not reward that with a negative slope
		laps := lapsWithTrend("HAM", 6, 90, -0.3, config.FuelTimeCoeffSKG, 100, 1.6)

		metrics, err := calculator.ComputePace(laps, PaceModeFuelAdjusted)

		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}

		// flat fit through the residual mean: 90 - 0.3*mean(0..5)
		if !compareFloatsTolerance(metrics[0].MeanAdjustedPace, 90-0.3*2.5) {
			t.Errorf("Expected flat fit through residual mean, got %f", metrics[0].MeanAdjustedPace)
		}
	})
}

func TestComputePaceCleanAir(t *testing.T) {
	config := DefaultEngineConfig()
	calculator := newTestPaceCalculator(config)

	t.Run("InsufficientCleanLaps", func(t *testing.T) {
		laps := lapsWithTrend("HAM", 5, 90, 0.08, config.FuelTimeCoeffSKG, 100, 1.6)

		// only laps 1 and 2 are clean
		for i := range laps {
			if i >= 2 {
				laps[i].GapToCarAhead = floatPtr(0.4)
			}
		}

		_, err := calculator.ComputePace(laps, PaceModeCleanAir)

		if !errors.Is(err, ErrInsufficientSample) {
			t.Errorf("Expected ErrInsufficientSample, got %v", err)
		}
	})

	t.Run("TrafficLapsExcluded", func(t *testing.T) {
		laps := lapsWithTrend("HAM", 8, 90, 0.08, config.FuelTimeCoeffSKG, 100, 1.6)

		// put three traffic laps well off the underlying trend. excluding
		// them must recover the clean fresh tyre pace exactly.
		for _, i := range []int{2, 4, 6} {
			laps[i].GapToCarAhead = floatPtr(0.3)
			laps[i].LapTime += 1.5
		}

		metrics, err := calculator.ComputePace(laps, PaceModeCleanAir)

		if err != nil {
			t.Fatalf("Expected no error, got %s", err)
		}

		if !compareFloatsTolerance(metrics[0].MeanAdjustedPace, 90) {
			t.Errorf("Expected clean air pace 90, got %f", metrics[0].MeanAdjustedPace)
		}

		if metrics[0].SampleSize != 5 {
			t.Errorf("Expected 5 clean laps in the sample, got %d", metrics[0].SampleSize)
		}
	})
}
