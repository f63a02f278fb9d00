package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/poiesic/knowbot/ai"
)

// DefaultDimensions is the vector length produced by the default MockEmbedder.
const DefaultDimensions = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// CreateEmbeddingsFunc is called by CreateEmbeddings if set.
	// If nil, uses default deterministic behavior.
	CreateEmbeddingsFunc func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error)

	// Dimensions sets the default vector length. Zero means DefaultDimensions.
	Dimensions int

	mu        sync.Mutex
	callCount int
	texts     []string
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// CreateEmbeddings generates deterministic embeddings for texts.
func (m *MockEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
	m.mu.Lock()
	m.callCount++
	m.texts = append(m.texts, texts...)
	fn := m.CreateEmbeddingsFunc
	dim := m.Dimensions
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}

	if dim == 0 {
		dim = DefaultDimensions
	}
	results := make([]ai.IndexedEmbedding, len(texts))
	for i, text := range texts {
		results[i] = ai.IndexedEmbedding{Index: i, Vector: DeterministicVector(text, dim)}
	}
	return results, nil
}

// CallCount returns the number of upstream calls made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Texts returns every text received, in call order.
func (m *MockEmbedder) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Reset clears the call count, recorded texts and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.texts = nil
	m.CreateEmbeddingsFunc = nil
}

// DeterministicVector creates a deterministic embedding vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Simple pseudo-random generation based on seed and index
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}
