package raceengine

// CleanAirFilter classifies laps as run in clean air or in traffic, using
// the gap to the car ahead. Classification is a pure function of the gap and
// the threshold; it never mutates the lap table.
type CleanAirFilter struct {
	GapThreshold float64
}

func NewCleanAirFilter(config EngineConfig) *CleanAirFilter {
	return &CleanAirFilter{
		GapThreshold: config.CleanAirGapSec,
	}
}

// Classify maps each lap to whether it was run in clean air. A lap with no
// gap reading has no car ahead (the race leader) and is clean.
func (c *CleanAirFilter) Classify(laps []Lap) map[LapKey]bool {
	classification := make(map[LapKey]bool, len(laps))

	for _, lap := range laps {
		if lap.GapToCarAhead == nil {
			classification[lap.Key()] = true
			continue
		}

		classification[lap.Key()] = *lap.GapToCarAhead > c.GapThreshold
	}

	return classification
}
