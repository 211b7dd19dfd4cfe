package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"punctuation", "Patient's BP: 120/80 -- stable.", "patient s bp 120 80 -- stable."},
		{"hyphenated terms", "Post-op  follow-up\tdone", "post-op follow-up done"},
		{"unicode letters", "Café ÉLAN!", "café élan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "Mood: LOW; sleep (poor) & appetite... reduced?"
	once := Normalize(in)
	assert.Equal(t, once, Normalize(once))
}

func TestTermCountsDropsStopWordsBeforeBigrams(t *testing.T) {
	counts := termCounts(Normalize("The patient is calm and the patient sleeps"))
	assert.Equal(t, 2, counts["patient"])
	assert.Equal(t, 1, counts["patient calm"])
	assert.Equal(t, 1, counts["calm patient"])
	assert.Equal(t, 1, counts["patient sleeps"])
	assert.NotContains(t, counts, "the")
	assert.NotContains(t, counts, "the patient")
}

func TestTokenizeSkipsSingleRunes(t *testing.T) {
	assert.Equal(t, []string{"mg", "10", "dose"}, tokenize("a mg 10 x dose"))
}
