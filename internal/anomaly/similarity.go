package anomaly

import "math"

type SimilarityMetrics struct {
	AvgSimilarity float64 `json:"avg_cosine_similarity"`
	MinSimilarity float64 `json:"min_cosine_similarity"`
	MaxSimilarity float64 `json:"max_cosine_similarity"`
	StdSimilarity float64 `json:"std_cosine_similarity"`
	LengthRatio   float64 `json:"length_ratio"`
	NoveltyRatio  float64 `json:"unique_words_ratio"`
	Degenerate    bool    `json:"degenerate"`
}

// Analyze compares row 0 of features against the remaining rows and derives
// the structural metrics from the raw texts.
func Analyze(features FeatureMatrix, current string, history []string) SimilarityMetrics {
	if features.Degenerate() || len(features.Rows) < 2 {
		return degenerateMetrics()
	}

	sims := make([]float64, 0, len(features.Rows)-1)
	for _, row := range features.Rows[1:] {
		sims = append(sims, cosine(features.Rows[0], row))
	}
	mean, sd := meanStd(sims)
	lo, hi := sims[0], sims[0]
	for _, s := range sims[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	return SimilarityMetrics{
		AvgSimilarity: mean,
		MinSimilarity: lo,
		MaxSimilarity: hi,
		StdSimilarity: sd,
		LengthRatio:   lengthRatio(current, history),
		NoveltyRatio:  noveltyRatio(current, history),
	}
}

// degenerateMetrics reads as "maximally similar" so sparse texts raise no
// rule. Raw content differences between degenerate texts go undetected.
func degenerateMetrics() SimilarityMetrics {
	return SimilarityMetrics{
		AvgSimilarity: 1,
		MinSimilarity: 1,
		MaxSimilarity: 1,
		StdSimilarity: 0,
		LengthRatio:   1,
		NoveltyRatio:  0,
		Degenerate:    true,
	}
}

func cosine(a, b []float64) float64 {
	na, nb := magnitude(a), magnitude(b)
	if na == 0 || nb == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

func magnitude(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func lengthRatio(current string, history []string) float64 {
	avg := 1.0
	if len(history) > 0 {
		total := 0
		for _, h := range history {
			total += wordCount(h)
		}
		avg = float64(total) / float64(len(history))
	}
	return float64(wordCount(current)) / math.Max(avg, 1)
}

func noveltyRatio(current string, history []string) float64 {
	cur := wordSet(current)
	if len(cur) == 0 {
		return 0
	}
	seen := map[string]struct{}{}
	for _, h := range history {
		for w := range wordSet(h) {
			seen[w] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 1
	}
	novel := 0
	for w := range cur {
		if _, ok := seen[w]; !ok {
			novel++
		}
	}
	return float64(novel) / float64(len(cur))
}

func meanStd(values []float64) (mean, sd float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
