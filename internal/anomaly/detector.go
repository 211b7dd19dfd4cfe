package anomaly

import (
	"fmt"
	"math"
)

const (
	DefaultThreshold = 0.3
	// MinHistory is the smallest history that forms a baseline.
	MinHistory = 2

	lengthRatioLow  = 0.3
	lengthRatioHigh = 3.0
	noveltyCeiling  = 0.7
	divergentFloor  = 0.1
	decisionCutoff  = 0.5
)

type Config struct {
	Threshold   float64
	MaxFeatures int
}

func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		MaxFeatures: DefaultMaxFeatures,
	}
}

type Rule string

const (
	RuleLowSimilarity     Rule = "low_similarity"
	RuleLengthDeviation   Rule = "length_deviation"
	RuleVocabularyNovelty Rule = "vocabulary_novelty"
	RuleDivergentNote     Rule = "divergent_note"
)

// Indicator is one rule's contribution; Value is meaningful only when
// Triggered is set.
type Indicator struct {
	Rule      Rule    `json:"rule"`
	Triggered bool    `json:"triggered"`
	Value     float64 `json:"value"`
}

type Result struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"anomaly_score"`
	Triggered []Rule  `json:"triggered_indicators"`
}

// Detector scores a text against the recent history of the same entity.
// It holds only immutable configuration and is safe for concurrent use.
type Detector struct {
	threshold   float64
	maxFeatures int
}

func NewDetector(cfg Config) (*Detector, error) {
	if math.IsNaN(cfg.Threshold) || cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("anomaly threshold must be within [0,1], got %v", cfg.Threshold)
	}
	if cfg.MaxFeatures < 1 {
		return nil, fmt.Errorf("max features must be positive, got %d", cfg.MaxFeatures)
	}
	return &Detector{threshold: cfg.Threshold, maxFeatures: cfg.MaxFeatures}, nil
}

func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Detect reports whether current deviates from previous, which is expected
// most-recent-first. Fewer than MinHistory entries yields a clear result.
func (d *Detector) Detect(current string, previous []string) Result {
	if len(previous) < MinHistory {
		return Result{Triggered: []Rule{}}
	}
	return decide(evaluateRules(d.metrics(current, previous), d.threshold))
}

func (d *Detector) metrics(current string, previous []string) SimilarityMetrics {
	corpus := make([]string, 0, len(previous)+1)
	corpus = append(corpus, current)
	corpus = append(corpus, previous...)
	return Analyze(BuildFeatures(corpus, d.maxFeatures), current, previous)
}

func evaluateRules(m SimilarityMetrics, threshold float64) []Indicator {
	out := make([]Indicator, 0, 4)

	low := Indicator{Rule: RuleLowSimilarity}
	if m.AvgSimilarity < threshold {
		low.Triggered, low.Value = true, clamp01(1-m.AvgSimilarity)
	}
	out = append(out, low)

	length := Indicator{Rule: RuleLengthDeviation}
	if m.LengthRatio < lengthRatioLow || m.LengthRatio > lengthRatioHigh {
		length.Triggered, length.Value = true, clamp01(math.Abs(1-m.LengthRatio)/2)
	}
	out = append(out, length)

	novelty := Indicator{Rule: RuleVocabularyNovelty}
	if m.NoveltyRatio > noveltyCeiling {
		novelty.Triggered, novelty.Value = true, clamp01(m.NoveltyRatio)
	}
	out = append(out, novelty)

	divergent := Indicator{Rule: RuleDivergentNote}
	if m.MinSimilarity < divergentFloor {
		divergent.Triggered, divergent.Value = true, clamp01(1-m.MinSimilarity)
	}
	out = append(out, divergent)

	return out
}

// decide averages the triggered indicators. The decision is taken on the
// unrounded score; only the reported score is rounded.
func decide(indicators []Indicator) Result {
	res := Result{Triggered: []Rule{}}
	sum := 0.0
	for _, ind := range indicators {
		if !ind.Triggered {
			continue
		}
		sum += ind.Value
		res.Triggered = append(res.Triggered, ind.Rule)
	}
	if len(res.Triggered) == 0 {
		return res
	}
	score := clamp01(sum / float64(len(res.Triggered)))
	res.IsAnomaly = score > decisionCutoff
	res.Score = round3(score)
	return res
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
