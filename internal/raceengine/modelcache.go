package raceengine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// SurvivalModel estimates the probability that a tyre remains within
// acceptable performance beyond a given age at a given track temperature.
// Fitted models are opaque: the engine only ever calls Evaluate, so any
// representation (parametric, tabular, learned) can sit behind this.
type SurvivalModel interface {
	Evaluate(tyreAge int, trackTemp float64) float64
}

// CircuitMeta is per-circuit planning metadata shipped alongside the fitted
// models.
type CircuitMeta struct {
	TotalLaps          int     `json:"total_laps"`
	PitLossSec         float64 `json:"pit_loss"`
	BasePaceSec        float64 `json:"base_pace_s"`
	MinCompoundVariety int     `json:"min_compound_variety"`
}

// ModelArtifact is one fitted survival model plus its metadata, keyed by
// circuit and compound. Owned exclusively by the ModelCache; the strategy
// predictor borrows it for the duration of a single inference call.
type ModelArtifact struct {
	Circuit        string
	Compound       string
	SchemaVersion  int
	Model          SurvivalModel
	PaceLossPerLap float64
	Meta           CircuitMeta
}

// weibullSurvivalModel is the shipped parametric model representation. The
// characteristic life shortens linearly as track temperature rises above the
// reference temperature the model was fitted at.
type weibullSurvivalModel struct {
	Shape              float64 `json:"shape"`
	CharacteristicLife float64 `json:"characteristic_life"`
	TempSensitivity    float64 `json:"temp_sensitivity"`
	ReferenceTemp      float64 `json:"reference_temp"`
}

func (w *weibullSurvivalModel) Evaluate(tyreAge int, trackTemp float64) float64 {
	if tyreAge <= 0 {
		return 1
	}

	life := w.CharacteristicLife - w.TempSensitivity*(trackTemp-w.ReferenceTemp)

	if life < 1 {
		life = 1
	}

	return math.Exp(-math.Pow(float64(tyreAge)/life, w.Shape))
}

const CurrentArtifactSchemaVersion = 1

type modelArtifactDocument struct {
	Circuit        string               `json:"circuit"`
	Compound       string               `json:"compound"`
	SchemaVersion  int                  `json:"schema_version"`
	Survival       weibullSurvivalModel `json:"survival"`
	PaceLossPerLap float64              `json:"pace_loss_per_lap"`
}

// ParseModelArtifact decodes a fitted model document as supplied by the
// artifact store.
func ParseModelArtifact(data []byte, meta CircuitMeta) (*ModelArtifact, error) {
	var doc modelArtifactDocument

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if doc.SchemaVersion != CurrentArtifactSchemaVersion {
		return nil, fmt.Errorf("strategyd: unsupported artifact schema version %d (want %d)", doc.SchemaVersion, CurrentArtifactSchemaVersion)
	}

	if doc.Circuit == "" || doc.Compound == "" {
		return nil, fmt.Errorf("strategyd: artifact missing circuit or compound")
	}

	if doc.Survival.Shape <= 0 || doc.Survival.CharacteristicLife <= 0 {
		return nil, fmt.Errorf("strategyd: artifact for %s/%s has a degenerate survival curve", doc.Circuit, doc.Compound)
	}

	survival := doc.Survival

	return &ModelArtifact{
		Circuit:        doc.Circuit,
		Compound:       doc.Compound,
		SchemaVersion:  doc.SchemaVersion,
		Model:          &survival,
		PaceLossPerLap: doc.PaceLossPerLap,
		Meta:           meta,
	}, nil
}

type modelCacheKey struct {
	circuit  string
	compound string
}

// ModelCache is the process-wide store of fitted models. It is built once
// from the startup bulk load and is immutable afterwards, which makes
// concurrent lookups safe without locking. Updating models requires a
// process restart.
type ModelCache struct {
	artifacts map[modelCacheKey]*ModelArtifact
}

func NewModelCache(artifacts []*ModelArtifact) *ModelCache {
	cache := &ModelCache{
		artifacts: make(map[modelCacheKey]*ModelArtifact, len(artifacts)),
	}

	for _, artifact := range artifacts {
		cache.artifacts[modelCacheKey{circuit: artifact.Circuit, compound: artifact.Compound}] = artifact
	}

	return cache
}

// Lookup returns the fitted model for a circuit and compound. The returned
// artifact is read-only.
func (m *ModelCache) Lookup(circuit, compound string) (*ModelArtifact, error) {
	cacheLookups.Inc()

	artifact, ok := m.artifacts[modelCacheKey{circuit: circuit, compound: compound}]

	if !ok {
		cacheMisses.Inc()
		return nil, fmt.Errorf("%w: %s/%s", ErrModelNotFound, circuit, compound)
	}

	return artifact, nil
}

type CacheStatus struct {
	Loaded bool     `json:"loaded"`
	Keys   []string `json:"keys"`
}

// Status reports what the cache holds, for startup health reporting.
func (m *ModelCache) Status() CacheStatus {
	status := CacheStatus{
		Loaded: len(m.artifacts) > 0,
		Keys:   make([]string, 0, len(m.artifacts)),
	}

	for key := range m.artifacts {
		status.Keys = append(status.Keys, fmt.Sprintf("%s/%s", key.circuit, key.compound))
	}

	sort.Strings(status.Keys)

	return status
}
