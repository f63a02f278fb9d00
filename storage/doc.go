// Package storage provides the storage abstraction layer for knowbot.
//
// This package defines repository interfaces that decouple persistence from
// the crawl, training and retrieval logic. The training orchestrator only
// needs to create chunks and embeddings, update source state and read a
// bot's vectors back; everything else about the backend is hidden here.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return interfaces so callers can't
// couple to BadgerDB specifics:
//
//	bots, sources, chunks, backend, err := badger.NewMemoryRepositories()
//
// # Architecture
//
//   - Repository: lifecycle shared by all repositories
//   - BotRepository: tenant chatbots
//   - SourceRepository: knowledge sources and their training state
//   - ChunkRepository: chunks, embeddings and per-bot vector loading
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Writes made during one
// training run are visible to subsequent reads in the same run.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
