package fuzzy

import (
	"github.com/fefal-etl/internal/normalize"
)

// Match is the best-scoring candidate for a query
type Match struct {
	Candidate string
	Index     int
	Score     float64
}

// Ratio scores two strings as 2*LCS/(len(a)+len(b)) scaled to 0-100
func Ratio(a, b string) float64 {
	return ratioRunes([]rune(a), []rune(b))
}

// PartialRatio slides the shorter string over the longer one, including the
// partial windows hanging off either end, and keeps the best window score.
// A short header buried inside a long one therefore still scores 100.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	m, n := len(short), len(long)
	if m == 0 {
		if n == 0 {
			return 100
		}
		return 0
	}

	best := 0.0
	for start := -(m - 1); start < n; start++ {
		lo := start
		if lo < 0 {
			lo = 0
		}
		hi := start + m
		if hi > n {
			hi = n
		}
		score := ratioRunes(short, long[lo:hi])
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Best normalizes the query and every candidate and returns the highest
// partial-ratio candidate. Ties keep the earliest candidate.
func Best(query string, candidates []string) (Match, bool) {
	q := normalize.Text(query)
	best := Match{Index: -1}
	for i, candidate := range candidates {
		score := PartialRatio(q, normalize.Text(candidate))
		if best.Index == -1 || score > best.Score {
			best = Match{Candidate: candidate, Index: i, Score: score}
		}
	}
	return best, best.Index >= 0
}

// FindBestMatch returns the best candidate when its score reaches threshold
func FindBestMatch(query string, candidates []string, threshold float64) (string, bool) {
	m, ok := Best(query, candidates)
	if !ok || m.Score < threshold {
		return "", false
	}
	return m.Candidate, true
}

// Score returns the best partial-ratio score of query over candidates, or 0
func Score(query string, candidates []string) float64 {
	m, ok := Best(query, candidates)
	if !ok {
		return 0
	}
	return m.Score
}

func ratioRunes(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

// lcs is the longest common subsequence length, two rolling rows
func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
