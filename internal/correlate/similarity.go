package correlate

import (
	"math"
	"strings"

	"github.com/sightwatch/sightwatch/internal/report"
)

// Content similarity is TF-IDF cosine over the cycle's working set. The
// index is rebuilt each cycle; corpora are small (one region, one window).

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "she": true, "that": true,
	"the": true, "they": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "you": true,
}

type docVector map[string]float64

type similarityIndex struct {
	vecs map[int64]docVector // report id -> unit-length tf-idf vector
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// newSimilarityIndex builds tf-idf vectors for every report in the working
// set.
func newSimilarityIndex(reports []report.Processed) *similarityIndex {
	n := len(reports)
	docTokens := make(map[int64][]string, n)
	df := make(map[string]int)

	for i := range reports {
		r := &reports[i]
		tokens := tokenize(r.Text())
		docTokens[r.ID] = tokens
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	idf := make(map[string]float64, len(df))
	for t, d := range df {
		idf[t] = math.Log(float64(n+1)/float64(d+1)) + 1
	}

	idx := &similarityIndex{vecs: make(map[int64]docVector, n)}
	for id, tokens := range docTokens {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		vec := make(docVector, len(tf))
		var norm float64
		for t, c := range tf {
			w := float64(c) * idf[t]
			vec[t] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for t := range vec {
				vec[t] /= norm
			}
		}
		idx.vecs[id] = vec
	}
	return idx
}

// cosine returns the similarity of two indexed reports in [0, 1].
func (s *similarityIndex) cosine(a, b int64) float64 {
	va, vb := s.vecs[a], s.vecs[b]
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}
	if len(vb) < len(va) {
		va, vb = vb, va
	}
	var dot float64
	for t, w := range va {
		dot += w * vb[t]
	}
	return dot
}
