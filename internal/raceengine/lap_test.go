package raceengine

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func intPtr(i int) *int {
	return &i
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestNormalize(t *testing.T) {
	logger := logrus.New()
	normalizer := NewNormalizer(DefaultEngineConfig(), logger)

	t.Run("RejectsMalformedRecords", func(t *testing.T) {
		rows := []RawLap{
			{DriverID: "VER", LapNumber: intPtr(1), LapTime: floatPtr(92.1), Compound: "SOFT"},
			{DriverID: "", LapNumber: intPtr(2), LapTime: floatPtr(91.8), Compound: "SOFT"},
			{DriverID: "VER", LapNumber: nil, LapTime: floatPtr(91.5), Compound: "SOFT"},
			{DriverID: "VER", LapNumber: intPtr(4), LapTime: nil, Compound: "SOFT"},
			{DriverID: "VER", LapNumber: intPtr(5), LapTime: floatPtr(91.2), Compound: "SOFT"},
		}

		laps, rejected := normalizer.Normalize(rows)

		if len(laps)+len(rejected) != len(rows) {
			t.Errorf("Expected every row to be kept or rejected, got %d + %d of %d", len(laps), len(rejected), len(rows))
		}

		if len(rejected) != 3 {
			t.Errorf("Expected 3 rejections, got %d", len(rejected))
		}

		if len(rejected) > 0 {
			if rejected[0].Index != 1 || rejected[0].Missing[0] != "driver" {
				t.Errorf("Expected first rejection to name the missing driver field, got %v", rejected[0])
			}
		}
	})

	t.Run("SortsByDriverAndLap", func(t *testing.T) {
		rows := []RawLap{
			{DriverID: "VER", LapNumber: intPtr(2), LapTime: floatPtr(91.0), Compound: "SOFT"},
			{DriverID: "HAM", LapNumber: intPtr(1), LapTime: floatPtr(92.0), Compound: "SOFT"},
			{DriverID: "VER", LapNumber: intPtr(1), LapTime: floatPtr(91.5), Compound: "SOFT"},
		}

		laps, rejected := normalizer.Normalize(rows)

		if len(rejected) != 0 {
			t.Fatalf("Expected no rejections, got %d", len(rejected))
		}

		expectedOrder := []LapKey{
			{DriverID: "HAM", LapNumber: 1},
			{DriverID: "VER", LapNumber: 1},
			{DriverID: "VER", LapNumber: 2},
		}

		for i, key := range expectedOrder {
			if laps[i].Key() != key {
				t.Errorf("Expected lap %d to be %v, got %v", i, key, laps[i].Key())
			}
		}
	})

	t.Run("AssignsStintsOnCompoundChange", func(t *testing.T) {
		rows := []RawLap{
			{DriverID: "HAM", LapNumber: intPtr(1), LapTime: floatPtr(92.0), Compound: "SOFT"},
			{DriverID: "HAM", LapNumber: intPtr(2), LapTime: floatPtr(92.1), Compound: "SOFT"},
			{DriverID: "HAM", LapNumber: intPtr(3), LapTime: floatPtr(93.0), Compound: "HARD"},
			{DriverID: "HAM", LapNumber: intPtr(4), LapTime: floatPtr(93.1), Compound: "HARD"},
		}

		laps, _ := normalizer.Normalize(rows)

		expectedStints := []int{1, 1, 2, 2}
		expectedAges := []int{0, 1, 0, 1}

		for i, lap := range laps {
			if lap.StintID != expectedStints[i] {
				t.Errorf("Expected lap %d stint %d, got %d", i, expectedStints[i], lap.StintID)
			}

			if lap.TyreAge != expectedAges[i] {
				t.Errorf("Expected lap %d tyre age %d, got %d", i, expectedAges[i], lap.TyreAge)
			}
		}

		stints := BuildStints(laps)

		if len(stints) != 2 {
			t.Fatalf("Expected 2 stints, got %d", len(stints))
		}

		if stints[0].Compound != "SOFT" || stints[0].StartLap != 1 || stints[0].EndLap != 2 {
			t.Errorf("Unexpected first stint: %+v", stints[0])
		}

		if stints[1].Compound != "HARD" || stints[1].StartLap != 3 || stints[1].EndLap != 4 {
			t.Errorf("Unexpected second stint: %+v", stints[1])
		}
	})

	t.Run("EstimatesFuelWithLinearBurnModel", func(t *testing.T) {
		rows := []RawLap{
			{DriverID: "HAM", LapNumber: intPtr(1), LapTime: floatPtr(92.0), Compound: "SOFT"},
			{DriverID: "HAM", LapNumber: intPtr(11), LapTime: floatPtr(92.5), Compound: "SOFT"},
		}

		laps, _ := normalizer.Normalize(rows)

		if !compareFloatsTolerance(laps[0].FuelLoadKG, 100.0) {
			t.Errorf("Expected lap 1 fuel load 100.0, got %f", laps[0].FuelLoadKG)
		}

		if !compareFloatsTolerance(laps[1].FuelLoadKG, 100.0-1.6*10) {
			t.Errorf("Expected lap 11 fuel load 84.0, got %f", laps[1].FuelLoadKG)
		}
	})

	t.Run("SuppliedFuelReadingsAreKept", func(t *testing.T) {
		rows := []RawLap{
			{DriverID: "HAM", LapNumber: intPtr(1), LapTime: floatPtr(92.0), Compound: "SOFT", FuelLoadKG: floatPtr(55.5)},
		}

		laps, _ := normalizer.Normalize(rows)

		if !compareFloatsTolerance(laps[0].FuelLoadKG, 55.5) {
			t.Errorf("Expected supplied fuel load 55.5 to be kept, got %f", laps[0].FuelLoadKG)
		}
	})
}
