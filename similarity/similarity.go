package similarity

import (
	"cmp"
	"slices"

	"github.com/poiesic/knowbot/core"
)

// Candidate is a stored chunk vector considered by SearchTopK.
type Candidate struct {
	Id       core.ID
	Content  string
	Metadata map[string]string
	Vector   []float32
}

// Match is a candidate that scored above zero against the query.
type Match struct {
	Id         core.ID
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// It returns 0 when the lengths differ, when either vector is empty, or when
// either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	normA, normB := magnitude(a), magnitude(b)
	if normA == 0 || normB == 0 {
		return 0
	}

	// Rounding can push |cos| slightly past 1 for parallel vectors.
	return max(-1, min(1, dot/(normA*normB)))
}

// SearchTopK scores every candidate against query and returns at most k
// matches with similarity > 0, ordered by descending similarity. Equal
// scores keep their input order. A k of zero or less yields no matches.
func SearchTopK(query []float32, candidates []Candidate, k int) []Match {
	if k <= 0 {
		return []Match{}
	}

	matches := make([]Match, 0, min(k, len(candidates)))
	for _, c := range candidates {
		score := CosineSimilarity(query, c.Vector)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{
			Id:         c.Id,
			Content:    c.Content,
			Metadata:   c.Metadata,
			Similarity: score,
		})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
