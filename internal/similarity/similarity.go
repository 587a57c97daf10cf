// Package similarity holds the vector and text similarity measures shared by
// the in-process index implementations and the ranking code.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Cosine returns the cosine similarity of a and b.
// Mismatched lengths or zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Average returns the normalized mean of equally sized vectors.
// Vectors whose length differs from the first are ignored.
func Average(vectors ...[]float32) []float32 {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float32, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		// Normalize first so a longer vector does not dominate the mean.
		u := Normalize(append([]float32(nil), v...))
		for i := range u {
			out[i] += u[i]
		}
		n++
	}
	for i := range out {
		out[i] /= float32(n)
	}
	return Normalize(out)
}

// Trigrams returns the pg_trgm style trigram set of s: each lowercased
// alphanumeric word is padded with two leading spaces and one trailing space.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(s) {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Words splits s into lowercased alphanumeric words.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Trigram returns the Jaccard similarity of the trigram sets of a and b.
func Trigram(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// Matcher scores texts against one query by trigram containment: the share of
// the query's trigrams present in the text. A short query inside a long verse
// scores high, which plain Jaccard similarity would not allow.
type Matcher struct {
	query map[string]struct{}
}

// NewMatcher prepares a matcher for query.
func NewMatcher(query string) *Matcher {
	return &Matcher{query: Trigrams(query)}
}

// Empty reports whether the query has no trigrams.
func (m *Matcher) Empty() bool {
	return len(m.query) == 0
}

// Score returns the containment score of text in [0, 1].
func (m *Matcher) Score(text string) float64 {
	if len(m.query) == 0 {
		return 0
	}
	tt := Trigrams(text)
	shared := 0
	for g := range m.query {
		if _, ok := tt[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(m.query))
}
