package similarity

import (
	"math/rand/v2"
	"testing"

	"github.com/poiesic/knowbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", []float32{}, []float32{}, 0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		dim := 1 + r.IntN(64)
		a := randomVector(r, dim)
		b := randomVector(r, dim)

		self := CosineSimilarity(a, a)
		if magnitude(a) > 0 {
			assert.InDelta(t, 1.0, self, 1e-9)
		}

		ab := CosineSimilarity(a, b)
		assert.GreaterOrEqual(t, ab, -1.0)
		assert.LessOrEqual(t, ab, 1.0)
		assert.InDelta(t, ab, CosineSimilarity(b, a), 1e-12, "symmetric")

		assert.Zero(t, CosineSimilarity(a, append(b, 1)), "dimension mismatch")
	}
}

func TestSearchTopK(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Id: 1, Content: "orthogonal", Vector: []float32{0, 1}},
		{Id: 2, Content: "close", Vector: []float32{0.9, 0.1}},
		{Id: 3, Content: "exact", Vector: []float32{1, 0}},
		{Id: 4, Content: "opposite", Vector: []float32{-1, 0}},
		{Id: 5, Content: "stale", Vector: []float32{1, 0, 0}},
		{Id: 6, Content: "medium", Vector: []float32{0.5, 0.5}},
	}

	matches := SearchTopK(query, candidates, 5)
	require.Len(t, matches, 3)
	assert.Equal(t, core.ID(3), matches[0].Id)
	assert.Equal(t, core.ID(2), matches[1].Id)
	assert.Equal(t, core.ID(6), matches[2].Id)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Equal(t, "exact", matches[0].Content)
}

func TestSearchTopK_CapsAtK(t *testing.T) {
	query := []float32{1, 1}
	candidates := []Candidate{
		{Id: 1, Vector: []float32{1, 0}},
		{Id: 2, Vector: []float32{1, 1}},
		{Id: 3, Vector: []float32{0, 1}},
	}
	matches := SearchTopK(query, candidates, 1)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ID(2), matches[0].Id)
}

func TestSearchTopK_TiesKeepInputOrder(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Id: 7, Vector: []float32{2, 0}},
		{Id: 3, Vector: []float32{1, 0}},
		{Id: 5, Vector: []float32{3, 0}},
	}
	matches := SearchTopK(query, candidates, 3)
	require.Len(t, matches, 3)
	assert.Equal(t, []core.ID{7, 3, 5}, []core.ID{matches[0].Id, matches[1].Id, matches[2].Id})
}

func TestSearchTopK_NonPositiveK(t *testing.T) {
	candidates := []Candidate{{Id: 1, Vector: []float32{1}}}
	assert.Empty(t, SearchTopK([]float32{1}, candidates, 0))
	assert.Empty(t, SearchTopK([]float32{1}, candidates, -3))
}

func TestSearchTopK_NoCandidates(t *testing.T) {
	matches := SearchTopK([]float32{1, 0}, nil, 5)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestSearchTopK_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 100; i++ {
		dim := 2 + r.IntN(16)
		query := randomVector(r, dim)
		candidates := make([]Candidate, r.IntN(40))
		for j := range candidates {
			candidates[j] = Candidate{Id: core.ID(j + 1), Vector: randomVector(r, dim)}
		}
		k := r.IntN(10)

		matches := SearchTopK(query, candidates, k)
		assert.LessOrEqual(t, len(matches), k)
		for j, m := range matches {
			assert.Greater(t, m.Similarity, 0.0)
			if j > 0 {
				assert.GreaterOrEqual(t, matches[j-1].Similarity, m.Similarity)
			}
		}
	}
}
