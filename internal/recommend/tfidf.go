package recommend

import (
	"math"
	"regexp"
	"strings"
)

// tokens of two or more word characters, lowercased
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vector sparse, L2-normalized term weights
type Vector map[string]float64

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Vectorize computes a TF-IDF vector for every document.
//
// tf is the raw term count, idf is smoothed as ln((1+n)/(1+df))+1 and each
// vector is scaled to unit length, so cosine similarity is a dot product.
func Vectorize(docs []string) []Vector {
	n := len(docs)
	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for i, doc := range docs {
		tc := make(map[string]int)
		for _, tok := range tokenize(doc) {
			tc[tok]++
		}
		for term := range tc {
			df[term]++
		}
		counts[i] = tc
	}

	vectors := make([]Vector, n)
	for i, tc := range counts {
		v := make(Vector, len(tc))
		var norm float64
		for term, c := range tc {
			idf := math.Log(float64(1+n)/float64(1+df[term])) + 1
			w := float64(c) * idf
			v[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range v {
				v[term] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors
}

// Cosine similarity of two normalized vectors
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}
