// Package mock provides test doubles for the ai package interfaces.
//
// Mocks return concrete types so tests can inject behavior and assert on
// call counts:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockCompleter: Echoes the last user message, streaming it word by word
//   - MockProvider: Aggregates mock embedder and completer
//
// All mocks are safe for concurrent use.
package mock
