package anomaly

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var stableHistory = []string{
	"Patient shows improvement in mood and affect. Medication compliance is good.",
	"Patient reports feeling better today. Sleep pattern has improved.",
	"Mood remains stable. Patient is engaging well in group therapy.",
}

func newTestDetector(t *testing.T, threshold float64) *Detector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Threshold = threshold
	d, err := NewDetector(cfg)
	require.NoError(t, err)
	return d
}

func TestNewDetectorValidatesConfig(t *testing.T) {
	_, err := NewDetector(Config{Threshold: 1.5, MaxFeatures: 10})
	assert.Error(t, err)
	_, err = NewDetector(Config{Threshold: 0.3, MaxFeatures: 0})
	assert.Error(t, err)

	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.3, d.Threshold())
}

func TestDetectInsufficientHistory(t *testing.T) {
	d := newTestDetector(t, DefaultThreshold)
	for _, prev := range [][]string{nil, {}, {"one earlier note"}} {
		res := d.Detect("completely unrelated vocabulary terms here now", prev)
		assert.False(t, res.IsAnomaly)
		assert.Equal(t, 0.0, res.Score)
		assert.Empty(t, res.Triggered)
	}
}

func TestDetectIdenticalHistoryIsClear(t *testing.T) {
	d := newTestDetector(t, DefaultThreshold)
	note := stableHistory[0]
	res := d.Detect(note, []string{note, note, note})
	assert.False(t, res.IsAnomaly)
	assert.Equal(t, 0.0, res.Score)

	m := d.metrics(note, []string{note, note, note})
	assert.Equal(t, 1.0, m.AvgSimilarity)
}

func TestDetectDisjointVocabulary(t *testing.T) {
	d := newTestDetector(t, DefaultThreshold)
	res := d.Detect("completely unrelated vocabulary terms here now", stableHistory)
	assert.True(t, res.IsAnomaly)
	assert.Greater(t, res.Score, 0.5)
	assert.Equal(t, []Rule{RuleLowSimilarity, RuleVocabularyNovelty, RuleDivergentNote}, res.Triggered)
}

func TestDetectLengthOutlier(t *testing.T) {
	d := newTestDetector(t, DefaultThreshold)
	history := []string{
		strings.Repeat("patient calm ", 10),
		strings.Repeat("sleep improved ", 10),
		strings.Repeat("appetite normal ", 10),
	}
	res := d.Detect("Agitated.", history)
	assert.Contains(t, res.Triggered, RuleLengthDeviation)

	exp := d.Explain("Agitated.", history)
	require.NotNil(t, exp.Metrics)
	assert.Less(t, exp.Metrics.LengthRatio, 0.3)
	assert.Contains(t, exp.Reasons, "Significantly shorter than usual (0.05x)")
}

func TestDetectScoreBounds(t *testing.T) {
	d := newTestDetector(t, 0.9)
	inputs := []string{
		"",
		"Agitated.",
		"Patient continues to show positive progress. Mood is stable.",
		strings.Repeat("Emergency intervention required. Restraints applied. ", 40),
	}
	for _, in := range inputs {
		res := d.Detect(in, stableHistory)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
	}
}

func TestDetectThresholdRaiseKeepsOutcome(t *testing.T) {
	low := newTestDetector(t, 0.3)
	high := newTestDetector(t, 0.9)
	cases := []struct {
		current string
		history []string
	}{
		{"completely unrelated vocabulary terms here now", stableHistory},
		{stableHistory[1], []string{stableHistory[1], stableHistory[1]}},
	}
	for _, c := range cases {
		a := low.Detect(c.current, c.history)
		b := high.Detect(c.current, c.history)
		assert.GreaterOrEqual(t, b.Score, a.Score)
		if a.IsAnomaly {
			assert.True(t, b.IsAnomaly)
		}
	}
}

// Raising the threshold can add low_similarity at a value below the mean of
// the other indicators, which lowers the averaged score.
func TestDetectThresholdRaiseCanLowerScore(t *testing.T) {
	current := "mood, stable, sleeping, well, appetite, normal,"
	history := []string{
		"mood stable sleeping well appetite normal",
		"mood low sleeping poorly appetite reduced",
	}

	low := newTestDetector(t, 0.3).Detect(current, history)
	high := newTestDetector(t, 0.9).Detect(current, history)

	assert.True(t, low.IsAnomaly)
	assert.InDelta(t, 1.0, low.Score, 1e-9)
	assert.NotContains(t, low.Triggered, RuleLowSimilarity)

	assert.True(t, high.IsAnomaly)
	assert.InDelta(t, 0.833, high.Score, 1e-3)
	assert.Contains(t, high.Triggered, RuleLowSimilarity)
	assert.Less(t, high.Score, low.Score)
}

func TestDetectConcurrentCallsAreIndependent(t *testing.T) {
	d := newTestDetector(t, DefaultThreshold)
	inputs := []string{
		"completely unrelated vocabulary terms here now",
		"Patient continues to show positive progress. Mood is stable and medication adherence is excellent.",
		"Emergency intervention required. Patient exhibited severe agitation and required restraints.",
	}
	want := make([]Result, len(inputs))
	for i, in := range inputs {
		want[i] = d.Detect(in, stableHistory)
	}

	got := make([]Result, 64)
	var g errgroup.Group
	for i := range got {
		i := i
		g.Go(func() error {
			got[i] = d.Detect(inputs[i%len(inputs)], stableHistory)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i, res := range got {
		assert.Equal(t, want[i%len(inputs)], res)
	}
}

func TestDecideAveragesTriggeredIndicators(t *testing.T) {
	res := decide([]Indicator{
		{Rule: RuleLowSimilarity, Triggered: true, Value: 0.9},
		{Rule: RuleLengthDeviation},
		{Rule: RuleVocabularyNovelty, Triggered: true, Value: 0.4},
		{Rule: RuleDivergentNote},
	})
	assert.True(t, res.IsAnomaly)
	assert.Equal(t, 0.65, res.Score)
	assert.Equal(t, []Rule{RuleLowSimilarity, RuleVocabularyNovelty}, res.Triggered)

	none := decide(evaluateRules(degenerateMetrics(), DefaultThreshold))
	assert.False(t, none.IsAnomaly)
	assert.Equal(t, 0.0, none.Score)
}
