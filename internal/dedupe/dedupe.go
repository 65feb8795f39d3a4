// Package dedupe elects one canonical row per logical entity. Phase one
// groups rows by their exact identity text before registry matching;
// phase two groups them by registry id after it.
package dedupe

import (
	"sort"
	"strconv"

	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
)

// Group is a set of rows sharing one key. Indices refer to the input slice.
type Group struct {
	Key       string `json:"key"`
	Canonical int    `json:"canonical"`
	Members   []int  `json:"members"`
}

// Result splits the input indices into canonical rows and duplicates,
// both in input order
type Result struct {
	Groups     []Group `json:"groups"`
	Canonical  []int   `json:"canonical"`
	Duplicates []int   `json:"duplicates"`
}

// IdentityKey is the phase one key: whitespace-free normalized name and type
func IdentityKey(r survey.EntityRecord) string {
	return normalize.Compact(normalize.Text(r.NameNorm)) + "||" + normalize.Compact(normalize.Text(r.Type))
}

// ExactText groups rows by IdentityKey. The canonical row of a group is the
// one with the fewest empty or sentinel cells across the whole row; ties
// keep the earliest row.
func ExactText(records []survey.EntityRecord, rows []survey.Row, sentinels normalize.Sentinels) Result {
	nulls := make([]int, len(records))
	for i := range records {
		if i < len(rows) {
			nulls[i] = sentinels.CountNull(rows[i])
		}
	}

	return group(len(records), func(i int) (string, bool) {
		return IdentityKey(records[i]), true
	}, func(members []int) {
		sort.SliceStable(members, func(a, b int) bool {
			return nulls[members[a]] < nulls[members[b]]
		})
	})
}

// ByRegistryID groups matched rows by registry id. Rows are ranked by
// completeness then duration, both descending with missing values as -1;
// remaining ties keep input order. Unmatched rows are canonical on their own.
func ByRegistryID(records []survey.EntityRecord) Result {
	return group(len(records), func(i int) (string, bool) {
		if records[i].RegistryID == nil {
			return "", false
		}
		return strconv.FormatInt(*records[i].RegistryID, 10), true
	}, func(members []int) {
		sort.SliceStable(members, func(a, b int) bool {
			ra, rb := records[members[a]], records[members[b]]
			ca, cb := floatOr(ra.Completeness, -1), floatOr(rb.Completeness, -1)
			if ca != cb {
				return ca > cb
			}
			return intOr(ra.DurationSeconds, -1) > intOr(rb.DurationSeconds, -1)
		})
	})
}

// group buckets indices by key with a hash map and ranks every bucket
// of two or more with rank; rank must be stable
func group(n int, key func(i int) (string, bool), rank func(members []int)) Result {
	buckets := make(map[string][]int)
	var order []string
	var loose []int

	for i := 0; i < n; i++ {
		k, ok := key(i)
		if !ok {
			loose = append(loose, i)
			continue
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], i)
	}

	res := Result{Canonical: loose}
	for _, k := range order {
		members := buckets[k]
		if len(members) == 1 {
			res.Canonical = append(res.Canonical, members[0])
			continue
		}
		ranked := append([]int(nil), members...)
		rank(ranked)
		res.Groups = append(res.Groups, Group{Key: k, Canonical: ranked[0], Members: members})
		res.Canonical = append(res.Canonical, ranked[0])
		res.Duplicates = append(res.Duplicates, ranked[1:]...)
	}

	sort.Ints(res.Canonical)
	sort.Ints(res.Duplicates)
	return res
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
