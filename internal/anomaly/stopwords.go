package anomaly

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed stopwords_en.json
var stopWordsJSON []byte

var stopWords = loadStopWords(stopWordsJSON)

func loadStopWords(raw []byte) map[string]struct{} {
	var words []string
	if err := json.Unmarshal(raw, &words); err != nil {
		panic("anomaly: invalid embedded stop word list: " + err.Error())
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return out
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
