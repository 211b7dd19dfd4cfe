package anomaly

import "fmt"

type Explanation struct {
	IsAnomaly           bool               `json:"is_anomaly"`
	Score               float64            `json:"anomaly_score"`
	Metrics             *SimilarityMetrics `json:"metrics,omitempty"`
	Indicators          []Indicator        `json:"indicators"`
	Reasons             []string           `json:"reasons"`
	InsufficientHistory bool               `json:"insufficient_history,omitempty"`
}

// Explain recomputes the Detect decision and renders one reason per
// triggered rule, in rule order.
func (d *Detector) Explain(current string, previous []string) Explanation {
	if len(previous) < MinHistory {
		return Explanation{
			Indicators:          []Indicator{},
			Reasons:             []string{},
			InsufficientHistory: true,
		}
	}
	metrics := d.metrics(current, previous)
	indicators := evaluateRules(metrics, d.threshold)
	res := decide(indicators)

	reasons := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if ind.Triggered {
			reasons = append(reasons, reason(ind.Rule, metrics))
		}
	}
	return Explanation{
		IsAnomaly:  res.IsAnomaly,
		Score:      res.Score,
		Metrics:    &metrics,
		Indicators: indicators,
		Reasons:    reasons,
	}
}

func reason(rule Rule, m SimilarityMetrics) string {
	switch rule {
	case RuleLowSimilarity:
		return fmt.Sprintf("Low content similarity (%.3f)", m.AvgSimilarity)
	case RuleLengthDeviation:
		if m.LengthRatio < lengthRatioLow {
			return fmt.Sprintf("Significantly shorter than usual (%.2fx)", m.LengthRatio)
		}
		return fmt.Sprintf("Significantly longer than usual (%.2fx)", m.LengthRatio)
	case RuleVocabularyNovelty:
		return fmt.Sprintf("High unique vocabulary (%.3f)", m.NoveltyRatio)
	case RuleDivergentNote:
		return fmt.Sprintf("Very different from at least one previous note (%.3f)", m.MinSimilarity)
	default:
		return string(rule)
	}
}
