package summarize

import (
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"digest-backend/internal/shared/faults"
)

const (
	similarityThreshold = 0.1
	damping             = 0.85
	maxIterations       = 100
	epsilon             = 1e-6
)

// rank selects the n most central sentences of text and joins them in
// document order.
func rank(text string, n int, method Method) (string, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", faults.Summarization(errors.New("no sentences"), "rank")
	}
	if n <= 0 {
		n = DefaultSentenceCount
	}
	if len(sentences) <= n {
		return strings.Join(sentences, " "), nil
	}

	tokens := make([][]string, len(sentences))
	for i, s := range sentences {
		tokens[i] = words(s)
	}

	var matrix [][]float64
	switch method {
	case MethodTextRank:
		matrix = overlapMatrix(tokens)
	default:
		matrix = cosineMatrix(tokens)
	}
	scores := powerIterate(normalizeRows(matrix))

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	picked := order[:n]
	sort.Ints(picked)

	out := make([]string, 0, n)
	for _, idx := range picked {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// cosineMatrix is the LexRank graph: tf-idf cosine similarity with edges
// below the threshold dropped. Self-similarity is left out so isolated
// sentences do not keep their own mass.
func cosineMatrix(tokens [][]string) [][]float64 {
	n := len(tokens)
	df := map[string]int{}
	tfs := make([]map[string]float64, n)
	for i, toks := range tokens {
		tfs[i] = termFrequency(toks)
		for term := range tfs[i] {
			df[term]++
		}
	}
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log(float64(n)/float64(count)) + 1
	}

	norms := make([]float64, n)
	for i, tf := range tfs {
		var sum float64
		for term, f := range tf {
			w := f * idf[term]
			sum += w * w
		}
		norms[i] = math.Sqrt(sum)
	}

	matrix := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := cosine(tfs[i], tfs[j], idf, norms[i], norms[j])
			if sim <= similarityThreshold {
				continue
			}
			matrix[i][j] = 1
			matrix[j][i] = 1
		}
	}
	return matrix
}

func cosine(a, b map[string]float64, idf map[string]float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, fa := range a {
		if fb, ok := b[term]; ok {
			w := idf[term]
			dot += fa * fb * w * w
		}
	}
	return dot / (normA * normB)
}

// overlapMatrix is the TextRank graph: shared words weighted by sentence length.
func overlapMatrix(tokens [][]string) [][]float64 {
	n := len(tokens)
	sets := make([]map[string]struct{}, n)
	for i, toks := range tokens {
		sets[i] = make(map[string]struct{}, len(toks))
		for _, t := range toks {
			sets[i][t] = struct{}{}
		}
	}
	matrix := newMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			li, lj := len(sets[i]), len(sets[j])
			if li < 2 || lj < 2 {
				continue
			}
			common := 0
			for t := range sets[i] {
				if _, ok := sets[j][t]; ok {
					common++
				}
			}
			if common == 0 {
				continue
			}
			w := float64(common) / (math.Log(float64(li)) + math.Log(float64(lj)))
			matrix[i][j] = w
			matrix[j][i] = w
		}
	}
	return matrix
}

// normalizeRows turns edge weights into transition probabilities. Rows
// without edges jump uniformly.
func normalizeRows(matrix [][]float64) [][]float64 {
	n := len(matrix)
	for i := range matrix {
		var sum float64
		for _, v := range matrix[i] {
			sum += v
		}
		for j := range matrix[i] {
			if sum == 0 {
				matrix[i][j] = 1 / float64(n)
				continue
			}
			matrix[i][j] /= sum
		}
	}
	return matrix
}

func powerIterate(matrix [][]float64) []float64 {
	n := len(matrix)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < maxIterations; iter++ {
		for j := 0; j < n; j++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += matrix[i][j] * scores[i]
			}
			next[j] = (1-damping)/float64(n) + damping*sum
		}
		var delta float64
		for i := range scores {
			delta += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores
		if delta < epsilon {
			break
		}
	}
	return scores
}

func termFrequency(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	var peak float64
	for _, t := range tokens {
		counts[t]++
		if counts[t] > peak {
			peak = counts[t]
		}
	}
	for t := range counts {
		counts[t] /= peak
	}
	return counts
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
