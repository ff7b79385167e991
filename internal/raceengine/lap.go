package raceengine

import (
	"sort"
)

// RawLap is one loosely-typed row from the historical data feed. Optional
// readings are pointers so that absent and zero are distinguishable.
type RawLap struct {
	DriverID      string   `json:"driver"`
	LapNumber     *int     `json:"lap"`
	LapTime       *float64 `json:"time_s"`
	Compound      string   `json:"compound"`
	TyreAge       *int     `json:"tyre_age"`
	FuelLoadKG    *float64 `json:"fuel_kg"`
	GapToCarAhead *float64 `json:"gap_ahead_s"`
}

// Lap is the canonical in-memory lap record. Immutable once normalized.
type Lap struct {
	DriverID      string
	LapNumber     int
	LapTime       float64
	StintID       int
	Compound      string
	TyreAge       int
	FuelLoadKG    float64
	GapToCarAhead *float64
}

// LapKey identifies a lap within one event.
type LapKey struct {
	DriverID  string
	LapNumber int
}

func (l Lap) Key() LapKey {
	return LapKey{DriverID: l.DriverID, LapNumber: l.LapNumber}
}

// Stint is a continuous run of laps on one compound between pit stops.
type Stint struct {
	DriverID string
	StintID  int
	Compound string
	StartLap int
	EndLap   int
	Laps     []Lap
}

type Normalizer struct {
	fuelStartLoadKG  float64
	fuelBurnPerLapKG float64

	logger Logger
}

func NewNormalizer(config EngineConfig, logger Logger) *Normalizer {
	return &Normalizer{
		fuelStartLoadKG:  config.FuelStartLoadKG,
		fuelBurnPerLapKG: config.FuelBurnPerLapKG,
		logger:           logger,
	}
}

// Normalize converts raw rows for one event into the canonical lap table,
// sorted by (driver, lap number). Rows missing driver, lap number or lap
// time are rejected and returned so callers can report them; they are
// counted, never silently dropped.
func (n *Normalizer) Normalize(rows []RawLap) ([]Lap, []*MalformedRecordError) {
	var rejected []*MalformedRecordError

	valid := make([]RawLap, 0, len(rows))

	for i, row := range rows {
		var missing []string

		if row.DriverID == "" {
			missing = append(missing, "driver")
		}

		if row.LapNumber == nil {
			missing = append(missing, "lap")
		}

		if row.LapTime == nil || *row.LapTime <= 0 {
			missing = append(missing, "time_s")
		}

		if len(missing) > 0 {
			rejected = append(rejected, &MalformedRecordError{Index: i, Missing: missing})
			continue
		}

		valid = append(valid, row)
	}

	if len(rejected) > 0 {
		n.logger.Warnf("Rejected %d of %d raw lap records", len(rejected), len(rows))
		rejectedRecords.Add(float64(len(rejected)))
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].DriverID != valid[j].DriverID {
			return valid[i].DriverID < valid[j].DriverID
		}

		return *valid[i].LapNumber < *valid[j].LapNumber
	})

	laps := make([]Lap, 0, len(valid))

	var (
		currentDriver   string
		currentCompound string
		stintID         int
		stintStartLap   int
		prevFuel        float64
	)

	for _, row := range valid {
		if row.DriverID != currentDriver {
			currentDriver = row.DriverID
			currentCompound = row.Compound
			stintID = 1
			stintStartLap = *row.LapNumber
			prevFuel = -1
		} else if row.Compound != currentCompound {
			currentCompound = row.Compound
			stintID++
			stintStartLap = *row.LapNumber
			prevFuel = -1
		}

		lap := Lap{
			DriverID:      row.DriverID,
			LapNumber:     *row.LapNumber,
			LapTime:       *row.LapTime,
			StintID:       stintID,
			Compound:      row.Compound,
			GapToCarAhead: row.GapToCarAhead,
		}

		if row.TyreAge != nil {
			lap.TyreAge = *row.TyreAge
		} else {
			lap.TyreAge = lap.LapNumber - stintStartLap
		}

		if row.FuelLoadKG != nil {
			lap.FuelLoadKG = *row.FuelLoadKG
		} else {
			lap.FuelLoadKG = n.fuelStartLoadKG - n.fuelBurnPerLapKG*float64(lap.LapNumber-1)

			if lap.FuelLoadKG < 0 {
				lap.FuelLoadKG = 0
			}
		}

		// fuel load must not increase within a stint
		if prevFuel >= 0 && lap.FuelLoadKG > prevFuel {
			n.logger.Warnf("Fuel load increased within a stint for driver %s at lap %d (%.1fkg -> %.1fkg)", lap.DriverID, lap.LapNumber, prevFuel, lap.FuelLoadKG)
			fuelAnomalies.Inc()
		}

		prevFuel = lap.FuelLoadKG

		laps = append(laps, lap)
	}

	return laps, rejected
}

// BuildStints groups a normalized lap table into per-driver stints, ordered
// by (driver, stint).
func BuildStints(laps []Lap) []*Stint {
	type stintKey struct {
		driverID string
		stintID  int
	}

	var stints []*Stint

	byStint := make(map[stintKey]*Stint)

	for _, lap := range laps {
		key := stintKey{driverID: lap.DriverID, stintID: lap.StintID}

		stint, ok := byStint[key]

		if !ok {
			stint = &Stint{
				DriverID: lap.DriverID,
				StintID:  lap.StintID,
				Compound: lap.Compound,
				StartLap: lap.LapNumber,
			}

			byStint[key] = stint
			stints = append(stints, stint)
		}

		if lap.LapNumber > stint.EndLap {
			stint.EndLap = lap.LapNumber
		}

		if lap.LapNumber < stint.StartLap {
			stint.StartLap = lap.LapNumber
		}

		stint.Laps = append(stint.Laps, lap)
	}

	sort.SliceStable(stints, func(i, j int) bool {
		if stints[i].DriverID != stints[j].DriverID {
			return stints[i].DriverID < stints[j].DriverID
		}

		return stints[i].StintID < stints[j].StintID
	})

	return stints
}
