package raceengine

import (
	"context"
)

// LapSource supplies raw lap rows for one event. The historical data feed
// behind it is an external collaborator; the engine treats it as an opaque
// read-only feed.
type LapSource interface {
	Laps(ctx context.Context, season, round int) ([]RawLap, error)
}

// Engine is the race analytics and strategy inference core. Every request
// operates on request-local data; the model cache is the only shared state
// and is read-only after startup, so the engine is safe for concurrent use.
type Engine struct {
	config EngineConfig

	normalizer   *Normalizer
	filter       *CleanAirFilter
	pace         *PaceCalculator
	distribution *DistributionAggregator
	cache        *ModelCache
	predictor    *StrategyPredictor

	lapSource LapSource
	logger    Logger
}

func NewEngine(config EngineConfig, cache *ModelCache, lapSource LapSource, logger Logger) *Engine {
	filter := NewCleanAirFilter(config)

	return &Engine{
		config:       config,
		normalizer:   NewNormalizer(config, logger),
		filter:       filter,
		pace:         NewPaceCalculator(config, filter, logger),
		distribution: NewDistributionAggregator(config),
		cache:        cache,
		predictor:    NewStrategyPredictor(cache, config, logger),
		lapSource:    lapSource,
		logger:       logger,
	}
}

// PaceReport carries the derived pace metrics for one event together with a
// count of the raw records the normalizer had to reject.
type PaceReport struct {
	Metrics         []PaceMetric `json:"metrics"`
	RejectedRecords int          `json:"rejected_records"`
}

// DistributionReport is the per-driver lap time distributions for one
// event, with the same rejection accounting as PaceReport.
type DistributionReport struct {
	Distributions   []*LapTimeDistribution `json:"distributions"`
	RejectedRecords int                    `json:"rejected_records"`
}

func (e *Engine) eventLaps(ctx context.Context, season, round int) ([]Lap, int, error) {
	rows, err := e.lapSource.Laps(ctx, season, round)

	if err != nil {
		return nil, 0, err
	}

	laps, rejected := e.normalizer.Normalize(rows)

	return laps, len(rejected), nil
}

// RacePace computes per-driver pace for one event in the requested mode.
func (e *Engine) RacePace(ctx context.Context, season, round int, mode PaceMode) (*PaceReport, error) {
	laps, rejected, err := e.eventLaps(ctx, season, round)

	if err != nil {
		return nil, err
	}

	metrics, err := e.pace.ComputePace(laps, mode)

	if err != nil {
		return nil, err
	}

	return &PaceReport{Metrics: metrics, RejectedRecords: rejected}, nil
}

// CleanAirPace is RacePace restricted to laps run in clean air.
func (e *Engine) CleanAirPace(ctx context.Context, season, round int) (*PaceReport, error) {
	return e.RacePace(ctx, season, round, PaceModeCleanAir)
}

// LapTimeDistributions summarizes each driver's lap time sample for one
// event.
func (e *Engine) LapTimeDistributions(ctx context.Context, season, round int) (*DistributionReport, error) {
	laps, rejected, err := e.eventLaps(ctx, season, round)

	if err != nil {
		return nil, err
	}

	distributions, err := e.distribution.SummarizeAll(laps)

	if err != nil {
		return nil, err
	}

	return &DistributionReport{Distributions: distributions, RejectedRecords: rejected}, nil
}

// PredictStrategy runs survival-model inference over the loaded artifacts.
func (e *Engine) PredictStrategy(circuit string, trackTemp float64, compounds []string, maxStops int) ([]StrategyCandidate, error) {
	return e.predictor.Predict(circuit, trackTemp, compounds, maxStops)
}

// CacheStatus reports what the model cache holds.
func (e *Engine) CacheStatus() CacheStatus {
	return e.cache.Status()
}
