package anomaly

import (
	"math"
	"sort"
)

// DefaultMaxFeatures caps the per-call vocabulary.
const DefaultMaxFeatures = 1000

// Terms present in more than this share of corpus entries carry no signal.
const maxDocFreqRatio = 0.95

type Fallback string

const (
	FallbackNone            Fallback = ""
	FallbackSparseCorpus    Fallback = "sparse_corpus"
	FallbackEmptyVocabulary Fallback = "empty_vocabulary"
	FallbackVectorizeFailed Fallback = "vectorize_failed"
)

// FeatureMatrix holds one TF-IDF row per corpus entry; row 0 is the current
// text. A single-column matrix is the degenerate fallback shape.
type FeatureMatrix struct {
	Rows       [][]float64
	Cols       int
	Vocabulary []string
	Fallback   Fallback
}

func (m FeatureMatrix) Degenerate() bool {
	return m.Cols <= 1
}

// BuildFeatures fits a vocabulary on texts and returns their weighted
// vectors. All fitted state is local to the call.
func BuildFeatures(texts []string, maxFeatures int) (m FeatureMatrix) {
	if len(texts) <= 1 {
		return constantMatrix(len(texts), 0, FallbackSparseCorpus)
	}
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	defer func() {
		if r := recover(); r != nil {
			m = constantMatrix(len(texts), 1, FallbackVectorizeFailed)
		}
	}()

	docs := make([]map[string]int, len(texts))
	totals := map[string]int{}
	docFreq := map[string]int{}
	for i, text := range texts {
		counts := termCounts(Normalize(text))
		docs[i] = counts
		for term, c := range counts {
			totals[term] += c
			docFreq[term]++
		}
	}

	maxDocs := maxDocFreqRatio * float64(len(texts))
	vocab := make([]string, 0, len(totals))
	for term := range totals {
		if float64(docFreq[term]) > maxDocs {
			continue
		}
		vocab = append(vocab, term)
	}
	if len(vocab) == 0 {
		return constantMatrix(len(texts), 1, FallbackEmptyVocabulary)
	}
	sort.Slice(vocab, func(i, j int) bool {
		a, b := vocab[i], vocab[j]
		if totals[a] != totals[b] {
			return totals[a] > totals[b]
		}
		return a < b
	})
	if len(vocab) > maxFeatures {
		vocab = vocab[:maxFeatures]
	}

	n := float64(len(texts))
	idf := make([]float64, len(vocab))
	for j, term := range vocab {
		idf[j] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	rows := make([][]float64, len(docs))
	for i, counts := range docs {
		row := make([]float64, len(vocab))
		for j, term := range vocab {
			if c := counts[term]; c > 0 {
				row[j] = float64(c) * idf[j]
			}
		}
		l2Normalize(row)
		rows[i] = row
	}
	return FeatureMatrix{Rows: rows, Cols: len(vocab), Vocabulary: vocab}
}

func constantMatrix(rows int, value float64, fallback Fallback) FeatureMatrix {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = []float64{value}
	}
	return FeatureMatrix{Rows: out, Cols: 1, Fallback: fallback}
}

func l2Normalize(row []float64) {
	norm := magnitude(row)
	if norm == 0 {
		return
	}
	for i := range row {
		row[i] /= norm
	}
}
