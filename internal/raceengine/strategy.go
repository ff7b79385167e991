package raceengine

import (
	"fmt"
	"math"
	"sort"
)

// StopWindow is the lap window a pit stop is expected to fall into, bounded
// by the quartiles of the preceding stint's tyre life.
type StopWindow struct {
	P25 int `json:"p25"`
	P50 int `json:"p50"`
	P75 int `json:"p75"`
}

// StrategyCandidate is one candidate race strategy, ranked against its
// alternatives by expected total race time.
type StrategyCandidate struct {
	StopCount         int          `json:"stop_count"`
	Compounds         []string     `json:"compounds"`
	StopLaps          []int        `json:"stop_laps"`
	StopWindows       []StopWindow `json:"stop_windows"`
	ExpectedTotalTime float64      `json:"expected_total_time_s"`
	Probability       float64      `json:"probability"`
}

type StrategyPredictor struct {
	cache *ModelCache

	pitLossSec    float64
	maxStrategies int
	timePriorBeta float64

	logger Logger
}

func NewStrategyPredictor(cache *ModelCache, config EngineConfig, logger Logger) *StrategyPredictor {
	return &StrategyPredictor{
		cache:         cache,
		pitLossSec:    config.PitLossSec,
		maxStrategies: config.MaxStrategies,
		timePriorBeta: config.TimePriorBeta,
		logger:        logger,
	}
}

// Predict enumerates candidate strategies for a race and ranks them
// best-first by expected total race time, ties broken by fewer stops. It is
// purely computational and safe to run concurrently for independent
// requests.
func (s *StrategyPredictor) Predict(circuit string, trackTemp float64, compounds []string, maxStops int) ([]StrategyCandidate, error) {
	if len(compounds) == 0 {
		return nil, fmt.Errorf("%w: no compounds supplied", ErrInvalidRequest)
	}

	if maxStops < 0 {
		return nil, fmt.Errorf("%w: max stops must not be negative", ErrInvalidRequest)
	}

	available := uniqueCompounds(compounds)

	// every available compound can appear in a sequence, so every artifact
	// must exist before any candidate is evaluated. No partial results.
	artifacts := make(map[string]*ModelArtifact, len(available))

	for _, compound := range available {
		artifact, err := s.cache.Lookup(circuit, compound)

		if err != nil {
			return nil, err
		}

		artifacts[compound] = artifact
	}

	meta := artifacts[available[0]].Meta

	pitLoss := meta.PitLossSec

	if pitLoss <= 0 {
		pitLoss = s.pitLossSec
	}

	var candidates []StrategyCandidate

	for stops := 0; stops <= maxStops; stops++ {
		for _, sequence := range enumerateSequences(available, stops+1, meta.MinCompoundVariety) {
			candidate, ok := s.evaluateSequence(sequence, artifacts, meta, trackTemp, pitLoss)

			if !ok {
				continue
			}

			candidates = append(candidates, candidate)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExpectedTotalTime != candidates[j].ExpectedTotalTime {
			return candidates[i].ExpectedTotalTime < candidates[j].ExpectedTotalTime
		}

		return candidates[i].StopCount < candidates[j].StopCount
	})

	assignProbabilities(candidates, s.timePriorBeta)

	if s.maxStrategies > 0 && len(candidates) > s.maxStrategies {
		candidates = candidates[:s.maxStrategies]
	}

	s.logger.Debugf("Ranked %d strategy candidates for %s at %.1f°C", len(candidates), circuit, trackTemp)

	return candidates, nil
}

// evaluateSequence plans stint lengths from each compound's survival curve
// and prices the plan. Returns false when the sequence cannot cover the race
// distance with at least one lap per stint.
func (s *StrategyPredictor) evaluateSequence(sequence []string, artifacts map[string]*ModelArtifact, meta CircuitMeta, trackTemp, pitLoss float64) (StrategyCandidate, bool) {
	numStints := len(sequence)
	stintLengths := make([]int, numStints)

	lapsLeft := meta.TotalLaps

	for i, compound := range sequence {
		if i == numStints-1 {
			stintLengths[i] = lapsLeft
			break
		}

		length := expectedStintLaps(artifacts[compound].Model, trackTemp, meta.TotalLaps)

		// leave at least one lap for each remaining stint
		maxLength := lapsLeft - (numStints - 1 - i)

		if length > maxLength {
			length = maxLength
		}

		if length < 1 {
			return StrategyCandidate{}, false
		}

		stintLengths[i] = length
		lapsLeft -= length
	}

	if lapsLeft < 1 {
		return StrategyCandidate{}, false
	}

	var totalTime float64

	for i, compound := range sequence {
		artifact := artifacts[compound]
		length := float64(stintLengths[i])

		totalTime += length*meta.BasePaceSec + artifact.PaceLossPerLap*length*(length-1)/2
	}

	totalTime += pitLoss * float64(numStints-1)

	candidate := StrategyCandidate{
		StopCount:         numStints - 1,
		Compounds:         sequence,
		StopLaps:          make([]int, 0, numStints-1),
		StopWindows:       make([]StopWindow, 0, numStints-1),
		ExpectedTotalTime: totalTime,
	}

	cumulative := 0

	for i := 0; i < numStints-1; i++ {
		cumulative += stintLengths[i]
		candidate.StopLaps = append(candidate.StopLaps, cumulative)

		q25, q50, q75 := stintLifeQuartiles(artifacts[sequence[i]].Model, trackTemp, meta.TotalLaps)
		offset := cumulative - stintLengths[i]

		candidate.StopWindows = append(candidate.StopWindows, StopWindow{
			P25: clampLap(offset+q25, meta.TotalLaps),
			P50: clampLap(offset+q50, meta.TotalLaps),
			P75: clampLap(offset+q75, meta.TotalLaps),
		})
	}

	return candidate, true
}

// expectedStintLaps is the expectation of tyre life under the survival
// curve, capped at race distance.
func expectedStintLaps(model SurvivalModel, trackTemp float64, totalLaps int) int {
	var expectation float64

	for age := 1; age <= totalLaps; age++ {
		expectation += model.Evaluate(age, trackTemp)
	}

	laps := int(math.Round(expectation))

	if laps < 1 {
		laps = 1
	}

	return laps
}

// stintLifeQuartiles finds the ages at which a quarter, half and three
// quarters of tyres have dropped out of their performance window.
func stintLifeQuartiles(model SurvivalModel, trackTemp float64, totalLaps int) (q25, q50, q75 int) {
	quartile := func(threshold float64) int {
		for age := 1; age <= totalLaps; age++ {
			if model.Evaluate(age, trackTemp) <= threshold {
				return age
			}
		}

		return totalLaps
	}

	return quartile(0.75), quartile(0.50), quartile(0.25)
}

func clampLap(lap, totalLaps int) int {
	if lap < 1 {
		return 1
	}

	if lap > totalLaps-1 {
		return totalLaps - 1
	}

	return lap
}

// enumerateSequences lists compound sequences of the given length with no
// adjacent repeats and at least minVariety distinct compounds.
func enumerateSequences(available []string, length, minVariety int) [][]string {
	var sequences [][]string

	current := make([]string, 0, length)

	var build func()

	build = func() {
		if len(current) == length {
			if countDistinct(current) < minVariety {
				return
			}

			sequence := make([]string, length)
			copy(sequence, current)
			sequences = append(sequences, sequence)

			return
		}

		for _, compound := range available {
			if len(current) > 0 && current[len(current)-1] == compound {
				continue
			}

			current = append(current, compound)
			build()
			current = current[:len(current)-1]
		}
	}

	build()

	return sequences
}

func countDistinct(sequence []string) int {
	seen := make(map[string]bool, len(sequence))

	for _, compound := range sequence {
		seen[compound] = true
	}

	return len(seen)
}

func uniqueCompounds(compounds []string) []string {
	seen := make(map[string]bool, len(compounds))

	var unique []string

	for _, compound := range compounds {
		if seen[compound] {
			continue
		}

		seen[compound] = true
		unique = append(unique, compound)
	}

	return unique
}

// assignProbabilities spreads a softmax confidence over the ranked
// candidates, weighting by how far each falls behind the fastest.
func assignProbabilities(candidates []StrategyCandidate, beta float64) {
	if len(candidates) == 0 {
		return
	}

	times := make([]float64, len(candidates))

	for i, candidate := range candidates {
		times[i] = candidate.ExpectedTotalTime
	}

	minTime := times[0]

	for _, t := range times {
		if t < minTime {
			minTime = t
		}
	}

	spread := stdDev(times) + 1e-9

	var sum float64

	scores := make([]float64, len(times))

	for i, t := range times {
		scores[i] = math.Exp(-beta * (t - minTime) / spread)
		sum += scores[i]
	}

	for i := range candidates {
		candidates[i].Probability = scores[i] / sum
	}
}
