package raceengine

type EngineConfig struct {
	// the linear burn model estimates fuel load for laps which do not
	// carry their own fuel reading
	FuelStartLoadKG  float64 `json:"fuel_start_load_kg" yaml:"fuel_start_load_kg"`
	FuelBurnPerLapKG float64 `json:"fuel_burn_per_lap_kg" yaml:"fuel_burn_per_lap_kg"`

	FuelTimeCoeffSKG float64 `json:"fuel_time_coefficient_s_per_kg" yaml:"fuel_time_coefficient_s_per_kg"`
	CleanAirGapSec   float64 `json:"clean_air_gap_seconds" yaml:"clean_air_gap_seconds"`
	MinCleanLaps     int     `json:"min_clean_laps" yaml:"min_clean_laps"`
	MinDistributionN int     `json:"min_distribution_sample" yaml:"min_distribution_sample"`
	PitLossSec       float64 `json:"pit_loss_seconds" yaml:"pit_loss_seconds"`
	MaxStrategies    int     `json:"max_strategies" yaml:"max_strategies"`
	TimePriorBeta    float64 `json:"time_prior_beta" yaml:"time_prior_beta"`
}

// DefaultEngineConfig returns the documented defaults for every tunable the
// engine has. Production deployments are expected to override the fuel model
// and pit loss per circuit via the config file and circuit metadata.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FuelStartLoadKG:  100.0,
		FuelBurnPerLapKG: 1.6,
		FuelTimeCoeffSKG: 0.033,
		CleanAirGapSec:   2.0,
		MinCleanLaps:     3,
		MinDistributionN: 5,
		PitLossSec:       20.0,
		MaxStrategies:    5,
		TimePriorBeta:    0.4,
	}
}
