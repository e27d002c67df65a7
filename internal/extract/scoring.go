package extract

// --- Confidence scoring ---
//
// Confidence is a deterministic weighted combination of structural
// signals, isolated here as a pure function over a fixed feature vector
// so it can be tuned and unit-tested without touching tree-walking.
// The weights are configuration, not a hidden heuristic.

// Signals is the fixed feature vector for one candidate.
type Signals struct {
	// HasDoc: the declaration carries a doc comment or docstring.
	HasDoc bool
	// ExportedName: the identifier follows the language's public naming
	// convention (exported in Go, non-underscore-prefixed in Python).
	ExportedName bool
	// TestProximity: a test file sits in the same directory.
	TestProximity bool
	// FanIn: number of other modules importing the candidate's module.
	FanIn int
	// MemberCount: methods for a type, parameters for a function.
	MemberCount int
}

// Weights tunes the linear combination. Each weight scales a [0,1]
// signal; Base is the score of a candidate with no signals at all.
// The sum of Base and all weights should be 1.0 for full-signal
// candidates to score 1.0, but Score clamps regardless.
type Weights struct {
	Base          float64 `json:"base" yaml:"base"`
	Doc           float64 `json:"doc" yaml:"doc"`
	Naming        float64 `json:"naming" yaml:"naming"`
	TestProximity float64 `json:"test_proximity" yaml:"test_proximity"`
	FanIn         float64 `json:"fan_in" yaml:"fan_in"`
	Richness      float64 `json:"richness" yaml:"richness"`
}

// DefaultWeights returns the documented default combination:
// naming convention is the strongest single signal, documentation and
// test coverage proximity next, call-graph centrality and structural
// richness round it out.
func DefaultWeights() Weights {
	return Weights{
		Base:          0.25,
		Doc:           0.20,
		Naming:        0.25,
		TestProximity: 0.15,
		FanIn:         0.10,
		Richness:      0.05,
	}
}

// fanInSaturation is the fan-in at which the centrality signal maxes out.
const fanInSaturation = 5

// richnessSaturation is the member count at which richness maxes out.
const richnessSaturation = 4

// Score combines signals into a confidence in [0,1]. Same inputs must
// always yield the same output.
func Score(s Signals, w Weights) float64 {
	score := w.Base
	if s.HasDoc {
		score += w.Doc
	}
	if s.ExportedName {
		score += w.Naming
	}
	if s.TestProximity {
		score += w.TestProximity
	}
	score += w.FanIn * saturate(s.FanIn, fanInSaturation)
	score += w.Richness * saturate(s.MemberCount, richnessSaturation)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// saturate maps a count onto [0,1], topping out at max.
func saturate(n, max int) float64 {
	if n <= 0 {
		return 0
	}
	if n >= max {
		return 1
	}
	return float64(n) / float64(max)
}
